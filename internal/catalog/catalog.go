// Package catalog loads named dice rolls from YAML content files.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/odds/internal/dice"
)

// ErrDuplicateID is returned when two entries share an ID.
var ErrDuplicateID = errors.New("catalog: duplicate id")

// Roll is a named dice expression.
type Roll struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Expression  string `yaml:"expression"`
	Description string `yaml:"description"`

	// Parsed is Expression after parsing; set by the loader.
	Parsed dice.Expression `yaml:"-"`
}

// rollFile is the on-disk shape: a single file holds a list of rolls.
type rollFile struct {
	Rolls []Roll `yaml:"rolls"`
}

// Catalog holds rolls keyed by ID.
type Catalog struct {
	rolls map[string]*Roll
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{rolls: make(map[string]*Roll)}
}

// Add validates r and registers it.
//
// Precondition: r.ID must be non-empty and r.Expression must parse.
// Postcondition: r.Parsed is set and Get(r.ID) returns r.
func (c *Catalog) Add(r Roll) error {
	if r.ID == "" {
		return fmt.Errorf("catalog: roll %q has no id", r.Name)
	}
	if _, ok := c.rolls[r.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
	}
	expr, err := dice.Parse(r.Expression)
	if err != nil {
		return fmt.Errorf("catalog: roll %q: %w", r.ID, err)
	}
	r.Parsed = expr
	if r.Name == "" {
		r.Name = r.ID
	}
	c.rolls[r.ID] = &r
	return nil
}

// Get returns the roll for id, or (nil, false) if not found.
func (c *Catalog) Get(id string) (*Roll, bool) {
	r, ok := c.rolls[id]
	return r, ok
}

// All returns every roll sorted by ID.
func (c *Catalog) All() []*Roll {
	out := make([]*Roll, 0, len(c.rolls))
	for _, r := range c.rolls {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Roll) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of rolls.
func (c *Catalog) Len() int { return len(c.rolls) }

// Decode reads one catalog document from r into c.
func (c *Catalog) Decode(r io.Reader) error {
	var f rollFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	for _, roll := range f.Rolls {
		if err := c.Add(roll); err != nil {
			return err
		}
	}
	return nil
}

// LoadDirectory reads every *.yaml file in dir in name order and returns
// the combined Catalog.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Catalog, or an error naming the first bad file.
func LoadDirectory(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir %q: %w", dir, err)
	}
	cat := New()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		if err := cat.Decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
	}
	return cat, nil
}
