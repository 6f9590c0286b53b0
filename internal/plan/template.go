// Package plan holds the static plan templates and the pure functions that
// turn them into a user's schedule and read model.
package plan

import (
	"alcyxob/plan-tracker/internal/domain"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtinFS embed.FS

var (
	ErrInvalidTemplate = errors.New("invalid plan template")
	ErrUnknownTemplate = errors.New("unknown plan template")
)

// Registry resolves plan template IDs to their definitions.
type Registry struct {
	templates map[string]domain.PlanTemplate
}

// Builtin loads the templates compiled into the binary.
func Builtin() (*Registry, error) {
	sub, err := fs.Sub(builtinFS, "templates")
	if err != nil {
		return nil, err
	}
	return LoadRegistry(sub)
}

// LoadRegistry parses every *.yaml file at the root of fsys.
// Each template is validated by expanding it once.
func LoadRegistry(fsys fs.FS) (*Registry, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}

	reg := &Registry{templates: make(map[string]domain.PlanTemplate, len(files))}
	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		tmpl, err := ParseTemplate(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if tmpl.ID == "" {
			tmpl.ID = strings.TrimSuffix(path.Base(name), ".yaml")
		}
		if _, dup := reg.templates[tmpl.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidTemplate, tmpl.ID)
		}
		reg.templates[tmpl.ID] = tmpl
	}
	return reg, nil
}

// ParseTemplate decodes and validates a YAML plan definition.
func ParseTemplate(raw []byte) (domain.PlanTemplate, error) {
	var tmpl domain.PlanTemplate
	if err := yaml.Unmarshal(raw, &tmpl); err != nil {
		return domain.PlanTemplate{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if _, err := Expand(tmpl); err != nil {
		return domain.PlanTemplate{}, err
	}
	return tmpl, nil
}

func (r *Registry) Get(id string) (domain.PlanTemplate, error) {
	tmpl, ok := r.templates[id]
	if !ok {
		return domain.PlanTemplate{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return tmpl, nil
}

// IDs lists the registered template IDs in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
