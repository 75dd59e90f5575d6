package lsp

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-lsp"
)

// uriToPath returns the slash-separated path of a file URI, "" for any
// other scheme.
func uriToPath(uri lsp.DocumentURI) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return ""
	}
	p := u.Path
	// file:///C:/x -> C:/x
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
}

func pathToURI(path string) lsp.DocumentURI {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(filepath.FromSlash(path)); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return lsp.DocumentURI(u.String())
}

// canonicalURI gives every spelling of a file URI one form, so that
// "file:///a/%62.astro" and "file:///a/b.astro" share a document.
func canonicalURI(uri lsp.DocumentURI) lsp.DocumentURI {
	path := uriToPath(uri)
	if path == "" {
		return uri
	}
	return pathToURI(path)
}
