package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationsSortsUpFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.up.sql":   {Data: []byte("SELECT 2;")},
		"m/0001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"m/0001_a.down.sql": {Data: []byte("SELECT 0;")},
		"m/README.md":       {Data: []byte("docs")},
	}

	names, err := ListMigrations(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, names)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := ListMigrations(Migrations, MigrationsRoot)
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.up.sql", names[0])
}
