// Package templates holds the embedded HTML email templates.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"

	"EmailManager/internal/domain"
)

const (
	// Email wraps a free-form subject/body pair sent through the API.
	Email = "email"
	// Report is the daily summary report.
	Report = "report"
)

//go:embed html/*.html
var files embed.FS

// placeholders lists the variables each template reads. Missing ones render empty.
var placeholders = map[string][]string{
	Email:  {"subject", "body"},
	Report: {"date", "timestamp", "source_count", "summary_html", "messages", "no_emails"},
}

// listPlaceholders are ranged over, so their empty value is nil rather than "".
var listPlaceholders = map[string]bool{"messages": true}

// Set is a parsed collection of named templates.
type Set struct {
	templates map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Set, error) {
	return NewFromFS(files, "html")
}

// NewFromFS parses <name>.html for every known template name under dir.
func NewFromFS(fsys fs.FS, dir string) (*Set, error) {
	set := &Set{templates: make(map[string]*template.Template, len(placeholders))}
	for name := range placeholders {
		path := dir + "/" + name + ".html"
		tmpl, err := template.New(name+".html").ParseFS(fsys, path)
		if err != nil {
			return nil, domain.NewError(domain.KindTemplate, "parse template "+name, err)
		}
		set.templates[name] = tmpl
	}
	return set, nil
}

// Render executes the named template. Unknown names and execution failures
// are reported as TemplateError.
func (s *Set) Render(name string, vars map[string]any) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", domain.Errorf(domain.KindTemplate, "render", "unknown template %q", name)
	}

	data := make(map[string]any, len(vars)+len(placeholders[name]))
	for _, key := range placeholders[name] {
		if listPlaceholders[key] {
			data[key] = nil
			continue
		}
		data[key] = ""
	}
	for k, v := range vars {
		data[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", domain.NewError(domain.KindTemplate, fmt.Sprintf("render %s", name), err)
	}
	return buf.String(), nil
}
