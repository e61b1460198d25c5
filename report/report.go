// Package report renders a patch as a Graphviz graph or a plain text
// summary.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/vsariola/rack"
)

type (
	Reporter struct {
		Template *template.Template
	}

	// macros is the data handed to the templates.
	macros struct {
		rack.Patch
	}
)

//go:embed templates/*
var templateFS embed.FS

var kindColors = map[string]string{
	"oscillator": "#4a7ab5",
	"filter":     "#b5754a",
	"vca":        "#5fa85f",
	"output":     "#999999",
}

// New returns a reporter using the built-in templates.
func New() (*Reporter, error) {
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/*")
	if err != nil {
		return nil, fmt.Errorf("could not parse built-in report templates: %w", err)
	}
	return &Reporter{Template: tmpl}, nil
}

// NewFromTemplates parses every file in templateDirectory; a directory
// overriding the built-in reports must provide patch.dot and summary.txt.
func NewFromTemplates(templateDirectory string) (*Reporter, error) {
	globPtrn := filepath.Join(templateDirectory, "*.*")
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %w`, templateDirectory, err)
	}
	return &Reporter{Template: tmpl}, nil
}

func (r *Reporter) DOT(p rack.Patch) (string, error) {
	return r.execute("patch.dot", p)
}

func (r *Reporter) Summary(p rack.Patch) (string, error) {
	return r.execute("summary.txt", p)
}

func (r *Reporter) execute(name string, p rack.Patch) (string, error) {
	var result bytes.Buffer
	if err := r.Template.ExecuteTemplate(&result, name, macros{Patch: p}); err != nil {
		return "", fmt.Errorf(`could not execute template "%v": %w`, name, err)
	}
	return result.String(), nil
}

func (m macros) KindColor(kind string) string {
	if c, ok := kindColors[kind]; ok {
		return c
	}
	return "#cccccc"
}

// Escape protects record label separators in DOT labels.
func (m macros) Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `<`, `\<`, `>`, `\>`)
	return r.Replace(s)
}

// Number formats a parameter value compactly; non-numbers are printed as
// they are.
func (m macros) Number(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	case int:
		return strconv.Itoa(x)
	}
	return fmt.Sprint(v)
}
