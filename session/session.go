// Package session authenticates a DEFINE USER/DEFINE ACCESS principal
// and issues the JWT spec.md §5 describes, the way the teacher's own
// authn/jwt package issues and verifies its HS256 access tokens. A
// session.Context is immutable once built: USE NS/DB still mutates an
// exec.Executor's own NS/DB fields per spec.md §4.9, but the
// authenticated identity a statement run executes as never changes mid
// connection.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cockroachdb/errors"

	"github.com/forbearing/stratadb/catalog"
	"github.com/forbearing/stratadb/eval"
	"github.com/forbearing/stratadb/iam"
	"github.com/forbearing/stratadb/kerr"
	"github.com/forbearing/stratadb/value"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMalformed     = errors.New("token malformed")
)

// Claims is the JWT payload a signed-in principal's token carries.
type Claims struct {
	Namespace string `json:"ns,omitempty"`
	Database  string `json:"db,omitempty"`
	Name      string `json:"name"`
	Level     uint8  `json:"level"`
	Access    string `json:"access,omitempty"` // DEFINE ACCESS method name, empty for DEFINE USER auth

	jwt.RegisteredClaims
}

// Context is the authenticated identity + default scope a connection
// runs every statement as.
type Context struct {
	Principal iam.Principal
	Token     string
}

// SignInUser authenticates a DEFINE USER principal by bcrypt-comparing
// password against its stored PassHash.
func SignInUser(ctx context.Context, cat *catalog.Store, ns, db, name, password string) (iam.Principal, error) {
	u, err := cat.GetUser(ctx, ns, db, name)
	if err != nil {
		return iam.Principal{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)) != nil {
		return iam.Principal{}, ErrInvalidCredentials
	}
	return iam.Principal{Name: u.Name, Level: u.Level, Namespace: u.Namespace, Database: u.Database}, nil
}

// SignInRecord authenticates against a DEFINE ACCESS method's SIGNIN
// expression: cand is the candidate record (already resolved by the
// caller's own SELECT/lookup, typically by a unique email/username
// field) the expression is evaluated against; a truthy result signs in
// as a RECORD-scoped principal named after the record's id.
func SignInRecord(acc catalog.Access, cand value.Value, vars map[string]value.Value) (iam.Principal, error) {
	if acc.Signin.IsZero() {
		return iam.Principal{}, kerr.TypeMismatch("access method", "no SIGNIN clause")
	}
	env := &eval.Env{Arena: acc.Signin.Arena(), Doc: cand, Vars: vars}
	v, err := eval.Eval(env, acc.Signin.Root())
	if err != nil {
		return iam.Principal{}, err
	}
	if !v.Truthy() {
		return iam.Principal{}, ErrInvalidCredentials
	}
	name := cand.String()
	if cand.Kind == value.KindObject {
		if idv, ok := cand.ObjectRef().Get("id"); ok {
			name = idv.String()
		}
	}
	return iam.Principal{Name: name, Level: acc.Level, Namespace: acc.Namespace, Database: acc.Database}, nil
}

func accessDuration(acc catalog.Access) time.Duration {
	d, err := time.ParseDuration(acc.Duration)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// Issue signs a JWT for p using access's secret and duration (DEFINE
// ACCESS's own JWTSecret/Duration clauses), returning a ready-to-use
// Context.
func Issue(p iam.Principal, acc catalog.Access) (*Context, error) {
	now := time.Now()
	claims := Claims{
		Namespace: p.Namespace,
		Database:  p.Database,
		Name:      p.Name,
		Level:     uint8(p.Level),
		Access:    acc.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessDuration(acc))),
			Subject:   p.Name,
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(acc.JWTSecret))
	if err != nil {
		return nil, err
	}
	return &Context{Principal: p, Token: tok}, nil
}

// Verify parses and validates a token issued by Issue against secret,
// returning the Context it authenticates.
func Verify(token, secret string) (*Context, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, err
		}
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	p := iam.Principal{
		Name:      claims.Name,
		Level:     catalog.AccessLevel(claims.Level),
		Namespace: claims.Namespace,
		Database:  claims.Database,
	}
	return &Context{Principal: p, Token: token}, nil
}
