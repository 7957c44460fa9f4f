package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqlSection(t *testing.T) {
	content := `
-- +migrate Up
CREATE TABLE product_stock (product_id text);
ALTER TABLE product_stock ADD COLUMN quantity int;

-- +migrate Down
DROP TABLE product_stock;
`
	t.Run("Up", func(t *testing.T) {
		up := sqlSection(content, "Up")
		assert.Contains(t, up, "CREATE TABLE product_stock")
		assert.Contains(t, up, "ALTER TABLE product_stock")
		assert.NotContains(t, up, "DROP TABLE product_stock")
		assert.NotContains(t, up, "-- +migrate Up")
	})

	t.Run("Down", func(t *testing.T) {
		down := sqlSection(content, "Down")
		assert.Contains(t, down, "DROP TABLE product_stock")
		assert.NotContains(t, down, "CREATE TABLE product_stock")
	})
}

func TestDsnFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "store")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "assemblies")
	t.Setenv("DB_PORT", "5432")

	assert.Equal(t,
		"host=localhost user=store password=secret dbname=assemblies port=5432 sslmode=disable",
		dsnFromEnv())
}

func TestApplyUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tmpDir := t.TempDir()
	fileName := "20250601_create_product_stock.sql"
	filePath := filepath.Join(tmpDir, fileName)

	content := "-- +migrate Up\nCREATE TABLE product_stock (product_id text);"
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))

	files := []string{filePath}

	// Not applied yet, so the Up section runs and the version is recorded.
	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs(fileName).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE TABLE product_stock").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(fileName).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, applyUp(db, files))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyUp_SkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tmpDir := t.TempDir()
	fileName := "20250601_create_product_stock.sql"
	filePath := filepath.Join(tmpDir, fileName)
	require.NoError(t, os.WriteFile(filePath, []byte("-- +migrate Up\nSELECT 1;"), 0644))

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs(fileName).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, applyUp(db, []string{filePath}))
	require.NoError(t, mock.ExpectationsWereMet())
}
