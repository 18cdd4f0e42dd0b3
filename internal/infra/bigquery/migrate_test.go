package bigquery

import (
	"crypto/sha256"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_statements.sql", true, "0001", "create_statements"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationPattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				assert.Nil(t, matches)
				return
			}
			require.Len(t, matches, 3)
			assert.Equal(t, tt.version, matches[1])
			assert.Equal(t, tt.name, matches[2])
		})
	}
}

func TestReadMigrations(t *testing.T) {
	raw := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id STRING);"
	fsys := fstest.MapFS{
		"migrations/0002_second.sql": {Data: []byte(raw)},
		"migrations/0001_first.sql":  {Data: []byte(raw)},
		"migrations/README.md":       {Data: []byte("notes")},
	}

	migrations, err := ReadMigrations(fsys, "proj", "ledger")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "CREATE TABLE `proj.ledger.t` (id STRING);", migrations[0].SQL)
	assert.Equal(t, fmt.Sprintf("%x", sha256.Sum256([]byte(raw))), migrations[0].Checksum)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := ReadMigrations(migrationFiles, "proj", "ledger")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "create_statements", migrations[0].Name)
	assert.Equal(t, "create_transactions", migrations[1].Name)
	for _, m := range migrations {
		assert.NotContains(t, m.SQL, "{{")
	}
}
