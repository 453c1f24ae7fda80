package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/iam"
	"github.com/forbearing/stratadb/kv/memkv"
	"github.com/forbearing/stratadb/value"
)

func iamPrincipalFixture() iam.Principal {
	return iam.Principal{Name: "tobie", Level: catalog.LevelDatabase, Namespace: "app", Database: "main"}
}

func newCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store := memkv.New()
	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	return catalog.New(tx)
}

func TestSignInUserSuccess(t *testing.T) {
	cat := newCatalog(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, cat.PutUser(context.Background(), catalog.User{
		Namespace: "app", Database: "main", Name: "tobie", Level: catalog.LevelDatabase, PassHash: string(hash),
	}))

	p, err := SignInUser(context.Background(), cat, "app", "main", "tobie", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tobie", p.Name)
	assert.Equal(t, catalog.LevelDatabase, p.Level)
}

func TestSignInUserWrongPassword(t *testing.T) {
	cat := newCatalog(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, cat.PutUser(context.Background(), catalog.User{
		Namespace: "app", Database: "main", Name: "tobie", Level: catalog.LevelDatabase, PassHash: string(hash),
	}))

	_, err = SignInUser(context.Background(), cat, "app", "main", "tobie", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInUserUnknownUser(t *testing.T) {
	cat := newCatalog(t)
	_, err := SignInUser(context.Background(), cat, "app", "main", "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInRecordEvaluatesSigninExpr(t *testing.T) {
	expr, err := catalog.NewExpr(`$pass = "letmein"`)
	require.NoError(t, err)
	acc := catalog.Access{Namespace: "app", Database: "main", Name: "user_access", Level: catalog.LevelDatabase, Signin: expr}

	rec := value.NewObject()
	rec.Set("id", value.RecordIDVal("person", value.Int64(1)))
	vars := map[string]value.Value{"pass": value.String("letmein")}

	p, err := SignInRecord(acc, value.ObjectVal(rec), vars)
	require.NoError(t, err)
	assert.Equal(t, catalog.LevelDatabase, p.Level)
}

func TestSignInRecordWrongCredentialsDenied(t *testing.T) {
	expr, err := catalog.NewExpr(`$pass = "letmein"`)
	require.NoError(t, err)
	acc := catalog.Access{Name: "user_access", Level: catalog.LevelDatabase, Signin: expr}

	vars := map[string]value.Value{"pass": value.String("nope")}
	_, err = SignInRecord(acc, value.None(), vars)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInRecordMissingSigninClauseErrors(t *testing.T) {
	acc := catalog.Access{Name: "user_access", Level: catalog.LevelDatabase}
	_, err := SignInRecord(acc, value.None(), nil)
	assert.Error(t, err)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	acc := catalog.Access{Name: "user_access", Level: catalog.LevelDatabase, JWTSecret: "s3cr3t", Duration: "1h"}
	p := iamPrincipalFixture()

	sess, err := Issue(p, acc)
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)

	verified, err := Verify(sess.Token, "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, p.Name, verified.Principal.Name)
	assert.Equal(t, p.Level, verified.Principal.Level)
}

func TestVerifyWrongSecretFails(t *testing.T) {
	acc := catalog.Access{Name: "user_access", Level: catalog.LevelDatabase, JWTSecret: "s3cr3t", Duration: "1h"}
	sess, err := Issue(iamPrincipalFixture(), acc)
	require.NoError(t, err)

	_, err = Verify(sess.Token, "wrong-secret")
	assert.Error(t, err)
}

func TestVerifyExpiredTokenFails(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	claims := Claims{
		Name:  "tobie",
		Level: uint8(catalog.LevelDatabase),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(past),
			Subject:   "tobie",
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cr3t"))
	require.NoError(t, err)

	_, err = Verify(tok, "s3cr3t")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAccessDurationRejectsNonPositive(t *testing.T) {
	assert.Equal(t, time.Hour, accessDuration(catalog.Access{Duration: "-1h"}))
	assert.Equal(t, time.Hour, accessDuration(catalog.Access{Duration: "0s"}))
	assert.Equal(t, 30*time.Minute, accessDuration(catalog.Access{Duration: "30m"}))
}

func TestVerifyMalformedTokenFails(t *testing.T) {
	_, err := Verify("not-a-jwt", "s3cr3t")
	assert.Error(t, err)
}

func TestAccessDurationFallsBackToOneHour(t *testing.T) {
	acc := catalog.Access{Name: "a", JWTSecret: "s", Duration: "garbage"}
	before := time.Now()
	sess, err := Issue(iamPrincipalFixture(), acc)
	require.NoError(t, err)
	claims := new(Claims)
	_, _, err = jwt.NewParser().ParseUnverified(sess.Token, claims)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}
