package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var fixedNow = time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC)

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Cart Notes!", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "20250301090500_add_cart_notes.sql", filepath.Base(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- rollback add_cart_notes")
	assert.NoError(t, Validate(os.DirFS(dir)))

	_, err = CreateSQLMigration(dir, "add cart notes", fixedNow)
	assert.Error(t, err, "same version and name must not overwrite")

	_, err = CreateSQLMigration(dir, "!!!", fixedNow)
	assert.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"bad-name.sql":                    {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20250101000000_only_up.sql":      {Data: []byte("-- +goose Up\n")},
		"20250101000000_same_version.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"README.md":                       {Data: []byte("ignored")},
	}

	err := Validate(fsys)
	require.Error(t, err)
	errs := multierr.Errors(err)
	assert.Len(t, errs, 3)
	assert.True(t, strings.Contains(err.Error(), "missing \"-- +goose Down\""))
}

func TestValidateRejectsEmptyDir(t *testing.T) {
	assert.Error(t, Validate(fstest.MapFS{}))
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	assert.NoError(t, Validate(Migrations()))
}
