package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/catalog"
	"golang.org/x/crypto/bcrypt"
)

func TestExecDefineTablePersists(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `DEFINE TABLE person SCHEMAFULL COMMENT "people"`)

	tb, err := ex.Catalog.GetTable(context.Background(), "app", "main", "person")
	require.NoError(t, err)
	assert.True(t, tb.SchemaFull)
	assert.Equal(t, "people", tb.Comment)
}

func TestExecDefineTableIfNotExistsSkipsSecond(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `DEFINE TABLE person SCHEMAFULL COMMENT "first"`)
	run(t, ex, `DEFINE TABLE IF NOT EXISTS person SCHEMALESS COMMENT "second"`)

	tb, err := ex.Catalog.GetTable(context.Background(), "app", "main", "person")
	require.NoError(t, err)
	assert.True(t, tb.SchemaFull)
	assert.Equal(t, "first", tb.Comment)
}

func TestExecDefineFieldWithTypeAndAssert(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `DEFINE TABLE person SCHEMAFULL`)
	run(t, ex, `DEFINE FIELD age ON TABLE person TYPE int ASSERT $value > 0`)

	f, err := ex.Catalog.GetField(context.Background(), "app", "main", "person", "age")
	require.NoError(t, err)
	assert.Equal(t, "int", f.TypeName)
	require.NotNil(t, f.Assert)
}

func TestExecDefineIndexRegistersHNSW(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `DEFINE TABLE doc SCHEMAFULL`)
	run(t, ex, `DEFINE INDEX doc_embed ON TABLE doc FIELDS embedding HNSW DIMENSION 4 DIST cosine`)

	ix, err := ex.Catalog.GetIndex(context.Background(), "app", "main", "doc", "doc_embed")
	require.NoError(t, err)
	assert.Equal(t, catalog.IndexHNSW, ix.Kind)
	assert.Equal(t, 4, ix.Dimension)

	g := ex.HNSW.GetOrCreate("app", "main", "doc", ix)
	require.NotNil(t, g)
}

func TestExecDefineUserHashesPassword(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `DEFINE USER tobie ON DATABASE PASSWORD "hunter2" ROLES owner`)

	u, err := ex.Catalog.GetUser(context.Background(), "app", "main", "tobie")
	require.NoError(t, err)
	assert.Equal(t, []string{"owner"}, u.Roles)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte("hunter2")))
}

func TestExecRemoveFieldIfExistsTolerant(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `REMOVE FIELD ghost ON TABLE person IF EXISTS`)

	_, err := ex.Catalog.GetField(context.Background(), "app", "main", "person", "ghost")
	assert.Error(t, err)
}

func TestExecRemoveTableDeletesCatalogEntry(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `DEFINE TABLE person SCHEMAFULL`)
	run(t, ex, `REMOVE TABLE person`)

	_, err := ex.Catalog.GetTable(context.Background(), "app", "main", "person")
	assert.Error(t, err)
}

func TestExecAlterTableChangesSchemaFullAndComment(t *testing.T) {
	ex, _ := newExecutor(t, nil)
	defer ex.Close()

	run(t, ex, `DEFINE TABLE person SCHEMALESS`)
	run(t, ex, `ALTER TABLE person SCHEMAFULL COMMENT "altered"`)

	tb, err := ex.Catalog.GetTable(context.Background(), "app", "main", "person")
	require.NoError(t, err)
	assert.True(t, tb.SchemaFull)
	assert.Equal(t, "altered", tb.Comment)
}
