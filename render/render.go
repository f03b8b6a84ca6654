// Package render generates files from Go templates.
// The template materializer uses it for the README and example files it
// writes into every provisioned repository.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Template is a template of the rendered file.
type Template struct {
	// Name is the path of the file, relative to the render root.
	Name string
	// Body is the Go template to be used to render the file.
	Body string
	// Data is the data to be used to render the file.
	Data interface{}
}

// File is the rendered file to be written to the filesystem.
type File struct {
	Path    string
	Content string
}

// ToDir renders files from the templates and writes them to the given
// directory. It returns the list of the files written to the directory.
func ToDir(dir string, ts ...Template) ([]string, error) {
	var wrote []string

	for _, t := range ts {
		f, err := Execute(t)
		if err != nil {
			return nil, err
		}

		p := filepath.Join(dir, f.Path)

		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, err
		}

		if err := os.WriteFile(p, []byte(f.Content), 0644); err != nil {
			return nil, err
		}

		wrote = append(wrote, f.Path)
	}

	return wrote, nil
}

// Execute executes the given template and returns the file to be written
// to the filesystem.
func Execute(t Template) (*File, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("name must not be empty: template=%v", t)
	}

	if t.Body == "" {
		return nil, fmt.Errorf("body must not be empty: template=%v", t)
	}

	m := template.New(t.Name)
	m = m.Funcs(template.FuncMap{
		"join": func(sep string, s []string) string {
			return strings.Join(s, sep)
		},
		"toJson": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	})
	m, err := m.Parse(t.Body)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	if err := m.Execute(&buf, t.Data); err != nil {
		return nil, err
	}

	return &File{
		Path:    t.Name,
		Content: buf.String(),
	}, nil
}
