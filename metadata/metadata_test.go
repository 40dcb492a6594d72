package metadata

import (
	"crypto/sha1"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemRepositoryIdempotentAdd(t *testing.T) {
	repo := NewMemRepository()
	require.NoError(t, repo.Add("swap 50 A for 75 B"))
	require.NoError(t, repo.Add("swap 50 A for 75 B"))
	require.NoError(t, repo.Add("second"))

	assert.Equal(t, []string{"swap 50 A for 75 B", "second"}, repo.All())
}

func TestBoltRepositoryAddAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta", "reasons.db")
	repo, err := OpenBoltRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	const reason = "settlement r-17"
	require.NoError(t, repo.Add(reason))
	require.NoError(t, repo.Add(reason), "re-add must be idempotent")

	digest := sha1.Sum([]byte(reason))
	got, ok := repo.Lookup(digest[:])
	require.True(t, ok)
	assert.Equal(t, reason, got)

	_, ok = repo.Lookup(make([]byte, 20))
	assert.False(t, ok)
}
