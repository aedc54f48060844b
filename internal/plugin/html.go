package plugin

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/vpack/internal/emit"
	"github.com/vango-dev/vpack/pkg/assets"
)

// DefaultHTMLFilename is the page written when no filename is configured.
const DefaultHTMLFilename = "index.html"

// HTMLOptions configures the HTML plugin.
type HTMLOptions struct {
	// Template is an HTML file to inject scripts into. Relative paths are
	// taken from Root. Without a template a minimal page is generated.
	Template string

	// Root is the project root.
	Root string

	// Filename is the output path relative to the output root.
	// Default: DefaultHTMLFilename.
	Filename string

	// PublicPath prefixes every script URL. Default: "/".
	PublicPath string

	// Title is used by the generated page.
	Title string

	// Chunks limits the injected scripts to these chunk names.
	Chunks []string
}

// HTML writes a page that loads the emitted chunks.
type HTML struct {
	opts HTMLOptions
}

// NewHTML returns the HTML plugin.
func NewHTML(opts HTMLOptions) *HTML {
	if opts.Filename == "" {
		opts.Filename = DefaultHTMLFilename
	}
	if opts.PublicPath == "" {
		opts.PublicPath = "/"
	}
	if opts.Title == "" {
		opts.Title = "vpack"
	}
	return &HTML{opts: opts}
}

// Name implements emit.Plugin.
func (h *HTML) Name() string { return "html" }

// AfterEmit implements emit.AfterEmitter.
func (h *HTML) AfterEmit(_ context.Context, e *emit.Emission) error {
	page, err := h.page()
	if err != nil {
		return err
	}

	urls := assets.NewResolver(nil, h.opts.PublicPath)
	var tags strings.Builder
	for _, a := range e.CodeAssets() {
		if !h.includes(a.Chunk) {
			continue
		}
		fmt.Fprintf(&tags, "<script src=\"%s\"></script>\n", html.EscapeString(urls.URL(a.Path)))
	}

	e.AddAsset(emit.Asset{
		Path:    h.opts.Filename,
		Content: []byte(InjectBeforeBodyEnd(page, tags.String())),
		Kind:    emit.KindAux,
	})
	return nil
}

func (h *HTML) includes(chunk string) bool {
	if len(h.opts.Chunks) == 0 {
		return true
	}
	for _, c := range h.opts.Chunks {
		if c == chunk {
			return true
		}
	}
	return false
}

func (h *HTML) page() (string, error) {
	if h.opts.Template == "" {
		return fmt.Sprintf(defaultPage, html.EscapeString(h.opts.Title)), nil
	}
	path := h.opts.Template
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.opts.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// InjectBeforeBodyEnd inserts snippet before the last </body> tag, or
// appends it when the document has none.
func InjectBeforeBodyEnd(doc, snippet string) string {
	idx := strings.LastIndex(strings.ToLower(doc), "</body>")
	if idx < 0 {
		return doc + snippet
	}
	return doc[:idx] + snippet + doc[idx:]
}

const defaultPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body>
</body>
</html>
`
