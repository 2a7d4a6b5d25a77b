// store_test.go - Tests for the job file store
package filestore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvRule() Rule {
	return Rule{
		Extensions:   []string{".csv"},
		ContentTypes: []string{"text/csv", "text/plain", "application/csv"},
	}
}

func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStore_Save(t *testing.T) {
	t.Run("stores csv under job-scoped path", func(t *testing.T) {
		store := createTestStore(t)

		content := "question,answer\nwhat,that\n"
		meta, err := store.Save("job-1", "questions", "questions.csv", "text/csv", strings.NewReader(content), csvRule())
		require.NoError(t, err)

		assert.Equal(t, "questions.csv", meta.Name)
		assert.Equal(t, int64(len(content)), meta.Size)
		assert.Equal(t, filepath.Join(store.root, "job-1", "questions.csv"), meta.Path)

		data, err := os.ReadFile(meta.Path)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("does not use client name for the stored path", func(t *testing.T) {
		store := createTestStore(t)

		meta, err := store.Save("job-1", "questions", "../../evil.csv", "text/csv", strings.NewReader("a,b\n"), csvRule())
		require.NoError(t, err)

		assert.Equal(t, "evil.csv", meta.Name)
		assert.Equal(t, filepath.Join(store.root, "job-1", "questions.csv"), meta.Path)
	})

	t.Run("rejects disallowed extension", func(t *testing.T) {
		store := createTestStore(t)

		_, err := store.Save("job-1", "questions", "questions.tsv", "text/tsv", strings.NewReader("a\tb\n"), csvRule())
		require.ErrorIs(t, err, ErrUnexpectedFileType)
	})

	t.Run("rejects disallowed declared content type", func(t *testing.T) {
		store := createTestStore(t)

		_, err := store.Save("job-1", "questions", "questions.csv", "application/zip", strings.NewReader("a,b\n"), csvRule())
		require.ErrorIs(t, err, ErrUnexpectedFileType)
	})

	t.Run("rejects binary content behind an allowed extension", func(t *testing.T) {
		store := createTestStore(t)

		// PNG magic bytes sniff as image/png regardless of the name.
		png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)
		_, err := store.Save("job-1", "questions", "questions.csv", "text/csv", bytes.NewReader(png), csvRule())
		require.ErrorIs(t, err, ErrUnexpectedFileType)
	})

	t.Run("accepts upload without a declared type", func(t *testing.T) {
		store := createTestStore(t)

		_, err := store.Save("job-1", "questions", "questions.csv", "", strings.NewReader("a,b\n"), csvRule())
		require.NoError(t, err)
	})

	t.Run("overwrites the previous file for the key", func(t *testing.T) {
		store := createTestStore(t)

		first, err := store.Save("job-1", "questions", "old.csv", "text/csv", strings.NewReader("old,data\n"), csvRule())
		require.NoError(t, err)

		second, err := store.Save("job-1", "questions", "new.csv", "text/csv", strings.NewReader("new\n"), csvRule())
		require.NoError(t, err)

		assert.Equal(t, "new.csv", second.Name)
		assert.Equal(t, int64(4), second.Size)

		data, err := os.ReadFile(second.Path)
		require.NoError(t, err)
		assert.Equal(t, "new\n", string(data))

		// Same key and extension, so the old path holds the new bytes.
		assert.Equal(t, first.Path, second.Path)
	})
}

func TestStore_Remove(t *testing.T) {
	t.Run("removes metadata and bytes", func(t *testing.T) {
		store := createTestStore(t)

		meta, err := store.Save("job-1", "questions", "questions.csv", "text/csv", strings.NewReader("a,b\n"), csvRule())
		require.NoError(t, err)

		existed, err := store.Remove("job-1", "questions")
		require.NoError(t, err)
		assert.True(t, existed)

		_, err = os.Stat(meta.Path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("is idempotent on a missing key", func(t *testing.T) {
		store := createTestStore(t)

		existed, err := store.Remove("job-1", "questions")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestStore_RemoveJob(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Save("job-1", "questions", "questions.csv", "text/csv", strings.NewReader("a\n"), csvRule())
	require.NoError(t, err)
	_, err = store.Save("job-1", "courses", "courses.csv", "text/csv", strings.NewReader("b\n"), csvRule())
	require.NoError(t, err)

	require.NoError(t, store.RemoveJob("job-1"))

	_, err = os.Stat(filepath.Join(store.root, "job-1"))
	assert.True(t, os.IsNotExist(err))

	// Removing an unknown job is not an error.
	require.NoError(t, store.RemoveJob("job-2"))
}
