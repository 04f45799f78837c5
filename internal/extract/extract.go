// Package extract turns uploaded course files into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"github.com/abhisek/examgen/internal/errs"
)

// loaders maps a lower-case file extension to the document loader for it.
var loaders = map[string]func(data []byte) documentloaders.Loader{
	".txt":      textLoader,
	".md":       textLoader,
	".markdown": textLoader,
	".pdf": func(data []byte) documentloaders.Loader {
		return documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	},
}

func textLoader(data []byte) documentloaders.Loader {
	return documentloaders.NewText(bytes.NewReader(data))
}

// Supported lists the accepted file extensions.
func Supported() []string {
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Extract returns the text of a file, choosing the loader by the file
// name's extension. PDF pages are joined with newlines. Unsupported types,
// empty files and unreadable documents are InputErrors.
func Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	newLoader, ok := loaders[ext]
	if !ok {
		return "", errs.New(errs.KindInput, errs.StageExtract,
			fmt.Sprintf("unsupported file type %q (supported: %s)", ext, strings.Join(Supported(), ", ")))
	}
	if len(data) == 0 {
		return "", errs.New(errs.KindInput, errs.StageExtract, fmt.Sprintf("%s is empty", filename))
	}

	docs, err := load(ctx, newLoader(data))
	if err != nil {
		return "", errs.Wrap(errs.KindInput, errs.StageExtract, fmt.Errorf("read %s: %w", filename, err))
	}

	pages := make([]string, len(docs))
	for i, d := range docs {
		pages[i] = d.PageContent
	}
	return strings.Join(pages, "\n"), nil
}

// load runs l, converting a panic from a malformed document into an error.
func load(ctx context.Context, l documentloaders.Loader) (docs []schema.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()
	return l.Load(ctx)
}
