package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNested(t *testing.T) {
	base := t.TempDir()
	got, err := EnsureDir(filepath.Join(base, "export", "books"))
	require.NoError(t, err)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	// Idempotent.
	_, err = EnsureDir(filepath.Join(base, "export", "books"))
	assert.NoError(t, err)
}

func TestWriteAtomic_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	require.NoError(t, WriteAtomic(path, []byte("first")))
	require.NoError(t, WriteAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "Thinking-in-Systems", SafeName("Thinking in Systems"))
	assert.Equal(t, "Whats-Next-2nd-ed", SafeName("What's Next? (2nd ed)"))
	assert.Equal(t, "untitled", SafeName(""))
	assert.Equal(t, "untitled", SafeName("???"))
}
