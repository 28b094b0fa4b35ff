package server

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

type asset struct {
	data        []byte
	contentType string
}

// assets serves the viewer frontend from memory, minified once at load.
type assets struct {
	files   map[string]asset
	modTime time.Time
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	return m
}

func loadAssets(fsys fs.FS, minified bool) (*assets, error) {
	a := &assets{files: make(map[string]asset), modTime: time.Now()}
	m := newMinifier()

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		contentType := mime.TypeByExtension(path.Ext(p))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		if minified {
			mediaType, _, _ := mime.ParseMediaType(contentType)
			if out, err := m.Bytes(mediaType, data); err == nil {
				data = out
			} else if !errors.Is(err, minify.ErrNotExist) {
				return fmt.Errorf("minify %s: %w", p, err)
			}
		}
		a.files["/"+p] = asset{data: data, contentType: contentType}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	return a, nil
}

func (a *assets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	f, ok := a.files[p]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	http.ServeContent(w, r, p, a.modTime, bytes.NewReader(f.data))
}
