package taskmaster

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Template is a PRD skeleton with [Name] placeholders.
type Template struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Category     string   `yaml:"category" json:"category"`
	Content      string   `yaml:"content" json:"content"`
	Placeholders []string `yaml:"-" json:"placeholders"`
}

// Apply substitutes values into the template content.
func (t *Template) Apply(values map[string]string) string {
	return ApplyPlaceholders(t.Content, values)
}

// TemplateLibrary is an immutable set of templates sorted by id.
type TemplateLibrary struct {
	templates []*Template
}

// LoadTemplates reads every *.yaml template in fsys.
func LoadTemplates(fsys fs.FS) (*TemplateLibrary, error) {
	paths, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	lib := &TemplateLibrary{}
	seen := map[string]bool{}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", p, err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template %s: %w", p, err)
		}
		if t.ID == "" {
			return nil, fmt.Errorf("template %s has no id", p)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
		t.Placeholders = Placeholders(t.Content)
		lib.templates = append(lib.templates, &t)
	}
	sort.Slice(lib.templates, func(i, j int) bool {
		return lib.templates[i].ID < lib.templates[j].ID
	})
	return lib, nil
}

// BuiltinTemplates returns the templates shipped with the binary.
func BuiltinTemplates() (*TemplateLibrary, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	return LoadTemplates(sub)
}

func (l *TemplateLibrary) List() []*Template {
	out := make([]*Template, len(l.templates))
	copy(out, l.templates)
	return out
}

func (l *TemplateLibrary) Get(id string) (*Template, bool) {
	for _, t := range l.templates {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}
