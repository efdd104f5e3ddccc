// Package catalog resolves caption style templates by name. The built-in
// set covers every animation recipe; an optional YAML file can add new
// templates or override built-ins. The catalog is loaded once at startup
// and read-only afterwards.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/models"
)

// Catalog holds the resolved template set.
type Catalog struct {
	templates map[string]models.StyleTemplate
	names     []string
}

// New builds a catalog from the given templates. Later entries with the
// same name (case-insensitive) replace earlier ones.
func New(templates ...models.StyleTemplate) *Catalog {
	c := &Catalog{templates: make(map[string]models.StyleTemplate, len(templates))}
	for _, t := range templates {
		c.put(t)
	}
	return c
}

// Load builds the catalog from the built-ins plus the optional user
// template file named by the configuration. A missing file path is fine;
// a configured but unreadable or invalid file is an error so bad styles
// surface at startup instead of mid-render.
func Load(cfg config.CatalogConfig, logger *slog.Logger) (*Catalog, error) {
	c := New(Builtins()...)

	if cfg.TemplatesFile == "" {
		return c, nil
	}

	extras, err := loadFile(cfg.TemplatesFile)
	if err != nil {
		return nil, err
	}
	for _, t := range extras {
		if _, exists := c.templates[keyFor(t.Name)]; exists {
			logger.Info("user template overrides built-in", slog.String("template", t.Name))
		} else {
			logger.Debug("loaded user template", slog.String("template", t.Name))
		}
		c.put(t)
	}
	logger.Info("template catalog loaded",
		slog.String("file", cfg.TemplatesFile),
		slog.Int("user_templates", len(extras)),
		slog.Int("total", len(c.names)),
	)
	return c, nil
}

// Get returns the template with the given name, matched case-insensitively.
func (c *Catalog) Get(name string) (models.StyleTemplate, error) {
	t, ok := c.templates[keyFor(name)]
	if !ok {
		return models.StyleTemplate{}, fmt.Errorf("%w: %q", models.ErrTemplateNotFound, name)
	}
	return t, nil
}

// List returns all templates sorted by name.
func (c *Catalog) List() []models.StyleTemplate {
	out := make([]models.StyleTemplate, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.templates[n])
	}
	return out
}

// Names returns the sorted template names.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.templates[n].Name)
	}
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.names)
}

func (c *Catalog) put(t models.StyleTemplate) {
	key := keyFor(t.Name)
	if _, exists := c.templates[key]; !exists {
		c.names = append(c.names, key)
		sort.Strings(c.names)
	}
	c.templates[key] = t
}

func keyFor(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// templateFile is the on-disk schema of the user template file.
type templateFile struct {
	Templates []models.StyleTemplate `yaml:"templates"`
}

func loadFile(path string) ([]models.StyleTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing template file %s: %w", path, err)
	}

	for i := range file.Templates {
		if err := file.Templates[i].Validate(); err != nil {
			return nil, fmt.Errorf("template file %s entry %d: %w", path, i, err)
		}
	}
	return file.Templates, nil
}
