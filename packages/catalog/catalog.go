// Package catalog loads named request templates from YAML and runs them.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/abdul-hamid-achik/reqspec/packages/spec"
	"gopkg.in/yaml.v3"
)

var ErrUnknownTemplate = errors.New("unknown request template")

// Catalog is a set of request templates in document order.
type Catalog struct {
	Variables map[string]any
	templates map[string]*Template
	order     []string
	dir       string
}

type document struct {
	Variables map[string]any `yaml:"variables"`
	Requests  yaml.Node      `yaml:"requests"`
}

// Load reads a catalog file. Relative file uploads resolve against its
// directory.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		Variables: doc.Variables,
		templates: make(map[string]*Template),
	}

	if doc.Requests.Kind == 0 {
		return c, nil
	}
	if doc.Requests.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: requests must be a mapping of name to request", doc.Requests.Line)
	}

	// Mapping nodes alternate key and value.
	for i := 0; i+1 < len(doc.Requests.Content); i += 2 {
		key, value := doc.Requests.Content[i], doc.Requests.Content[i+1]

		t := &Template{}
		if err := value.Decode(t); err != nil {
			return nil, fmt.Errorf("request %q: %w", key.Value, err)
		}
		t.Name = key.Value
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if _, dup := c.templates[t.Name]; dup {
			return nil, fmt.Errorf("line %d: duplicate request %q", key.Line, t.Name)
		}

		c.templates[t.Name] = t
		c.order = append(c.order, t.Name)
	}

	return c, nil
}

// Names returns template names in document order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) Template(name string) (*Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// Spec builds a new spec from the named template. Each call returns an
// independent spec.
func (c *Catalog) Spec(name string) (*spec.Spec, error) {
	t, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownTemplate, name, c.sortedNames())
	}
	return t.Spec(c.dir)
}

func (c *Catalog) sortedNames() []string {
	names := c.Names()
	sort.Strings(names)
	return names
}
