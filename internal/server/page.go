package server

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/woozymasta/quakemap/assets"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// Page is the minified single page application.
type Page struct {
	Index   []byte
	Favicon []byte
}

type pageData struct {
	Title     string
	Container string
	CSS       string
	JS        string
}

// BuildPage renders the index template with inlined, minified CSS and JS.
func BuildPage(container string) (Page, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	cssMin, err := m.String("text/css", assets.Style)
	if err != nil {
		return Page{}, fmt.Errorf("minify css: %w", err)
	}

	jsMin, err := m.String("text/javascript", assets.Script)
	if err != nil {
		return Page{}, fmt.Errorf("minify js: %w", err)
	}

	svgMin, err := m.String("image/svg+xml", assets.Favicon)
	if err != nil {
		return Page{}, fmt.Errorf("minify svg: %w", err)
	}

	tmpl, err := template.New("index").Parse(assets.IndexTemplate)
	if err != nil {
		return Page{}, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, pageData{
		Title:     "Earthquakes of the past week",
		Container: container,
		CSS:       cssMin,
		JS:        jsMin,
	})
	if err != nil {
		return Page{}, fmt.Errorf("execute template: %w", err)
	}

	htmlMin, err := m.String("text/html", buf.String())
	if err != nil {
		return Page{}, fmt.Errorf("minify html: %w", err)
	}

	return Page{
		Index:   []byte(htmlMin),
		Favicon: []byte(svgMin),
	}, nil
}
