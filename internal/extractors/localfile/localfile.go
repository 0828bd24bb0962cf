// Package localfile resolves extractor inputs to files on the local disk.
//
// Inputs are plain paths or file:// URIs. Any other scheme is rejected so
// extractors can decline it without touching the filesystem.
package localfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Common metadata keys set on every local file extraction.
const (
	MetaFormat     = "format"
	MetaFileName   = "file_name"
	MetaSourcePath = "source_path"
	MetaSizeBytes  = "size_bytes"
	MetaModifiedAt = "modified_at"
)

// File is a resolved local source.
type File struct {
	// Path is absolute and used as the document key.
	Path string

	Info fs.FileInfo

	// Data is only populated by Open.
	Data []byte
}

// Resolve maps a path or file:// URI to a filesystem path.
// It returns false for empty input and for other URI schemes.
func Resolve(pathOrURI string) (string, bool) {
	return domain.LocalPath(pathOrURI)
}

// HasExtension reports whether the input resolves to a path ending in one
// of exts. Comparison is case-insensitive and exts include the dot.
func HasExtension(pathOrURI string, exts []string) bool {
	p, ok := Resolve(pathOrURI)
	if !ok {
		return false
	}
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Stat resolves and checks the input without reading it.
func Stat(pathOrURI string) (*File, error) {
	p, ok := Resolve(pathOrURI)
	if !ok {
		return nil, fmt.Errorf("%w: not a local path: %q", domain.ErrInvalidInput, pathOrURI)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, p, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, abs)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableSource, abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrUnreadableSource, abs)
	}
	return &File{Path: abs, Info: info}, nil
}

// Open resolves the input and reads the whole file.
func Open(pathOrURI string) (*File, error) {
	f, err := Stat(pathOrURI)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, f.Path)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableSource, f.Path, err)
	}
	f.Data = data
	return f, nil
}

// Reference builds the document reference for the file.
func (f *File) Reference(contentType string) domain.DocumentReference {
	return domain.DocumentReference{
		Key:         f.Path,
		DisplayName: filepath.Base(f.Path),
		ContentType: contentType,
	}
}

// Metadata returns the attributes common to all local extractions.
func (f *File) Metadata(format string) domain.Metadata {
	md := domain.Metadata{
		MetaFormat:     format,
		MetaFileName:   filepath.Base(f.Path),
		MetaSourcePath: f.Path,
	}
	if f.Info != nil {
		md[MetaSizeBytes] = f.Info.Size()
		md[MetaModifiedAt] = f.Info.ModTime().UTC().Format(time.RFC3339)
	}
	return md
}
