package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMIMEType(t *testing.T) {
	tests := map[string]string{
		"cni.jpg":         "image/jpeg",
		"CNI.JPEG":        "image/jpeg",
		"rib.png":         "image/png",
		"facture.PDF":     "application/pdf",
		"scan.heic":       "image/jpeg",
		"no-extension":    "image/jpeg",
		"dir.pdf/rib.png": "image/png",
	}
	for name, want := range tests {
		assert.Equal(t, want, MIMEType(name), name)
	}
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facture.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o600))

	src, err := LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "facture.pdf", src.Name)
	assert.Equal(t, "application/pdf", src.MIMEType)
	assert.Equal(t, []byte("%PDF-1.7"), src.Data)

	empty := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = LoadSource(empty)
	assert.ErrorContains(t, err, "is empty")

	_, err = LoadSource(filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListDocuments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rib.png", "cni.JPG", "notes.txt", "facture.pdf", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{1}, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.pdf"), 0o700))

	paths, err := ListDocuments(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "cni.JPG"),
		filepath.Join(dir, "facture.pdf"),
		filepath.Join(dir, "rib.png"),
	}, paths)

	_, err = ListDocuments(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}
