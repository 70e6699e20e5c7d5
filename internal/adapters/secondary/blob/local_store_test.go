package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_StoreAndRead(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := NewLocalStore(root)
	require.NoError(t, err)

	key, err := store.Store(ctx, []byte("png-bytes"), "1700000000000-screen.png", 42)
	require.NoError(t, err)
	assert.Equal(t, "tickets/42/1700000000000-screen.png", key)

	onDisk, err := os.ReadFile(filepath.Join(root, "tickets", "42", "1700000000000-screen.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), onDisk)

	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestLocalStore_StripsDirectoriesFromName(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key, err := store.Store(context.Background(), []byte("x"), "../../etc/passwd", 7)
	require.NoError(t, err)
	assert.Equal(t, "tickets/7/passwd", key)
}

func TestLocalStore_ReadRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "../outside.txt")
	assert.Error(t, err)
}

func TestLocalStore_ReadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "tickets/1/nope.png")
	assert.Error(t, err)
}
