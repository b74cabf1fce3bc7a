package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backpack-volume/internal/config"
)

func TestNewSQLite_InMemorySharesOneConnection(t *testing.T) {
	st, err := NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 4})
	require.NoError(t, err)
	defer st.Close()

	_, err = st.DB().Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)
	_, err = st.DB().Exec(`INSERT INTO t (v) VALUES (1)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, st.DB().Stats().MaxOpenConnections)
}

func TestNewSQLite_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "volume.db")
	st, err := NewSQLite(config.DatabaseConfig{Path: path, MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	require.NoError(t, st.DB().Ping())
	require.NoError(t, st.Close())
	assert.FileExists(t, path)
}

func TestClose_NilDB(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}
