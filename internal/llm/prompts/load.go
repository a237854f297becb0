package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-themis/internal/domain"
)

//go:embed templates/*.yaml
var builtin embed.FS

// templateFile is the on-disk shape: a list of templates.
type templateFile struct {
	Templates []domain.PromptTemplate `yaml:"templates"`
}

// NewDefaultRegistry returns a registry holding the built-in templates.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadFS(builtin, "templates"); err != nil {
		return nil, fmt.Errorf("failed to load built-in prompts: %w", err)
	}
	return r, nil
}

// LoadFS registers every *.yaml and *.yml file under dir in fsys.
func (r *Registry) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read prompt dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		if err := r.LoadYAML(data); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return nil
}

// LoadDir registers templates from YAML files in a directory on disk.
func (r *Registry) LoadDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return r.LoadFS(os.DirFS(abs), ".")
}

// LoadYAML registers the templates in one YAML document.
func (r *Registry) LoadYAML(data []byte) error {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	for _, t := range f.Templates {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("template %s: %w", t.Key(), err)
		}
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
