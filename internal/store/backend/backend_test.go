package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fitledger/internal/store/memory"
	"example.com/fitledger/internal/store/sqlite"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), Config{Kind: "Memory"})
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, s)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	s, err := Open(context.Background(), Config{SQLitePath: t.TempDir() + "/state.db"})
	require.NoError(t, err)
	defer s.Close()
	require.IsType(t, &sqlite.Store{}, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Kind: "etcd"})
	require.Error(t, err)
}
