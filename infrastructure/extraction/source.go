package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ahrav/go-kyc/internal/ports"
)

// defaultMIMEType is assumed for files with an unknown extension.
const defaultMIMEType = "image/jpeg"

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// MIMEType returns the media type for a file name based on its extension.
func MIMEType(name string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return defaultMIMEType
}

// IsDocumentFile reports whether name has one of the extensions picked up
// when scanning a folder.
func IsDocumentFile(name string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// LoadSource reads a document file.
func LoadSource(path string) (ports.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ports.Source{}, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	if len(data) == 0 {
		return ports.Source{}, fmt.Errorf("document %s is empty", path)
	}
	return ports.Source{
		Name:     filepath.Base(path),
		MIMEType: MIMEType(path),
		Data:     data,
	}, nil
}

// ListDocuments returns the document files directly inside dir, sorted by
// name. Subdirectories are not descended into.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsDocumentFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}
