// Package knowledge turns a file tree of text and Markdown documents,
// typically an embed.FS, into documents ready for IngestPack.
package knowledge

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/extractors/markdown"
)

// Scheme prefixes pack document keys.
const Scheme = "pack://"

var contentTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
}

// Key returns the document key of file p inside pack.
func Key(pack, p string) string {
	return Scheme + pack + "/" + p
}

// Load walks fsys and returns every text or Markdown file as a TextDocument
// keyed pack://<pack>/<path>, in lexical path order. Markdown is flattened
// to plain text. Empty files are kept so ingestion can report them.
func Load(fsys fs.FS, pack string) ([]domain.TextDocument, error) {
	if strings.TrimSpace(pack) == "" {
		return nil, fmt.Errorf("%w: empty pack name", domain.ErrInvalidInput)
	}

	md := markdown.New()
	var docs []domain.TextDocument
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(path.Ext(p))
		ct, ok := contentTypes[ext]
		if !ok {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrUnreadableSource, p, err)
		}

		text := string(data)
		if ct == "text/markdown" {
			text, _ = md.Flatten(data)
		}
		docs = append(docs, domain.TextDocument{
			Document: domain.DocumentReference{
				Key:         Key(pack, p),
				DisplayName: strings.TrimSuffix(path.Base(p), path.Ext(p)),
				ContentType: ct,
			},
			Text: text,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
