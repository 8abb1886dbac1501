package resource

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "notes.pdf", want: "notes.pdf"},
		{filename: "my week 1 notes.pdf", want: "my_week_1_notes.pdf"},
		{filename: "../../etc/passwd", want: "passwd"},
		{filename: `C:\Users\jdoe\hw 1.docx`, want: "hw_1.docx"},
		{filename: "résumé.pdf", want: "rsum.pdf"},
		{filename: "..", want: ""},
		{filename: "_hidden.txt", want: "hidden.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.filename))
		})
	}
}

func TestIsAllowedFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{filename: "a.pdf", want: true},
		{filename: "a.PDF", want: true},
		{filename: "photo.jpeg", want: true},
		{filename: "archive.tar.gz", want: false},
		{filename: "script.exe", want: false},
		{filename: "README", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowedFile(tt.filename))
		})
	}
}

func TestDiskStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewDiskStore(dir, 10)
	require.NoError(t, err)

	path, err := store.Save("a.txt", strings.NewReader("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", path)

	f, err := store.Open(path)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "0123456789", string(data))

	_, err = store.Save("b.txt", strings.NewReader("0123456789A"))
	assert.Equal(t, ErrFileTooLarge, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial file is left behind")

	// paths cannot escape the store
	f, err = store.Open("../a.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = store.Open("../../etc/passwd")
	assert.Equal(t, ErrFileNotFound, err)

	require.NoError(t, store.Remove(path))
	require.NoError(t, store.Remove(path), "removing twice is fine")
	_, err = store.Open(path)
	assert.Equal(t, ErrFileNotFound, err)
}

func TestDiskStore_neverOverwrites(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	names := []string{"notes.pdf", "notes_1.pdf", "notes_2.pdf"}
	for i, want := range names {
		path, err := store.Save("notes.pdf", strings.NewReader(want))
		require.NoError(t, err)
		assert.Equal(t, want, path, "save #%d", i+1)
	}

	require.NoError(t, store.Remove("notes_1.pdf"))
	for _, name := range []string{"notes.pdf", "notes_2.pdf"} {
		f, err := store.Open(name)
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		assert.Equal(t, name, string(data))
	}

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files are cleaned up")
}
