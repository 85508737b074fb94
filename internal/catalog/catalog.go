package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/SkelleTu/UltraPix/internal/domain"
)

//go:embed seed.yaml
var seedYAML []byte

type document struct {
	Templates []domain.Template `yaml:"templates"`
	Effects   []domain.Effect   `yaml:"effects"`
}

// Catalog is the read-only set of templates and effects. It is built once at
// startup and safe for concurrent reads.
type Catalog struct {
	templates []domain.Template
	effects   []domain.Effect
}

// Load reads the catalog from path, or from the embedded seed when path is empty.
func Load(path string) (*Catalog, error) {
	raw := seedYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML. Entries without an id get a random one.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := map[string]struct{}{}
	for i := range doc.Templates {
		t := &doc.Templates[i]
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("template %d: name is required", i)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		if t.DefaultEffects == nil {
			t.DefaultEffects = []string{}
		}
	}
	for i := range doc.Effects {
		e := &doc.Effects[i]
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("effect %d: name is required", i)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
		if e.DisplayName == "" {
			e.DisplayName = e.Name
		}
	}
	sort.SliceStable(doc.Templates, func(i, j int) bool {
		return doc.Templates[i].PopularityScore > doc.Templates[j].PopularityScore
	})
	sort.SliceStable(doc.Effects, func(i, j int) bool {
		return doc.Effects[i].UsageCount > doc.Effects[j].UsageCount
	})
	return &Catalog{templates: doc.Templates, effects: doc.Effects}, nil
}

// Templates returns templates by popularity, optionally filtered by category.
func (c *Catalog) Templates(category string) []domain.Template {
	out := []domain.Template{}
	for _, t := range c.templates {
		if category == "" || t.Category == category {
			out = append(out, cloneTemplate(t))
		}
	}
	return out
}

func (c *Catalog) Template(id string) (*domain.Template, error) {
	for _, t := range c.templates {
		if t.ID == id {
			cp := cloneTemplate(t)
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Effects returns effects by usage, optionally filtered by category.
func (c *Catalog) Effects(category string) []domain.Effect {
	out := []domain.Effect{}
	for _, e := range c.effects {
		if category == "" || e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

func (c *Catalog) TrendingEffects() []domain.Effect {
	out := []domain.Effect{}
	for _, e := range c.effects {
		if e.Trending {
			out = append(out, e)
		}
	}
	return out
}

func (c *Catalog) Effect(id string) (*domain.Effect, error) {
	for _, e := range c.effects {
		if e.ID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func cloneTemplate(t domain.Template) domain.Template {
	t.DefaultEffects = append([]string{}, t.DefaultEffects...)
	if t.DefaultCameraControls != nil {
		cc := *t.DefaultCameraControls
		t.DefaultCameraControls = &cc
	}
	return t
}

var _ domain.CatalogRepository = (*Catalog)(nil)
