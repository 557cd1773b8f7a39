package tag

import (
	"errors"
	"sort"
	"strconv"
	"time"
)

// Catalog errors.
var (
	ErrInvalidHandle   = errors.New("invalid tag handle")
	ErrDuplicateHandle = errors.New("duplicate tag handle")
	ErrDuplicateName   = errors.New("duplicate tag name")
	ErrInvalidInterval = errors.New("invalid minimum interval")
)

// Handle is the opaque identifier of one configured tag.
type Handle uint32

// String returns the decimal form of the handle.
func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// Provider answers configuration questions about tags.
type Provider interface {
	// Exists reports whether the handle names a configured tag.
	Exists(h Handle) bool

	// MinimumInterval returns the smallest polling interval the tag supports.
	// The result is undefined for unknown handles.
	MinimumInterval(h Handle) time.Duration
}

// Definition is the configuration of a single tag.
type Definition struct {
	// Handle identifies the tag.
	Handle Handle `yaml:"handle"`

	// Name is the tag's display name.
	Name string `yaml:"name"`

	// MinimumInterval is the polling floor for this tag.
	MinimumInterval time.Duration `yaml:"minimumInterval,omitempty"`
}

// Catalog is an immutable set of tag definitions.
type Catalog struct {
	byHandle map[Handle]Definition
	byName   map[string]Handle
}

// NewCatalog validates the definitions and builds a catalog.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		byHandle: make(map[Handle]Definition, len(defs)),
		byName:   make(map[string]Handle, len(defs)),
	}

	for _, def := range defs {
		if def.Handle == 0 {
			return nil, ErrInvalidHandle
		}
		if def.MinimumInterval < 0 {
			return nil, ErrInvalidInterval
		}
		if _, exists := c.byHandle[def.Handle]; exists {
			return nil, ErrDuplicateHandle
		}
		if def.Name != "" {
			if _, exists := c.byName[def.Name]; exists {
				return nil, ErrDuplicateName
			}
			c.byName[def.Name] = def.Handle
		}
		c.byHandle[def.Handle] = def
	}

	return c, nil
}

// Exists reports whether h is configured.
func (c *Catalog) Exists(h Handle) bool {
	_, ok := c.byHandle[h]
	return ok
}

// MinimumInterval returns the polling floor of h, or 0 if h is unknown.
func (c *Catalog) MinimumInterval(h Handle) time.Duration {
	return c.byHandle[h].MinimumInterval
}

// Lookup returns the definition for h.
func (c *Catalog) Lookup(h Handle) (Definition, bool) {
	def, ok := c.byHandle[h]
	return def, ok
}

// ByName returns the handle registered under name.
func (c *Catalog) ByName(name string) (Handle, bool) {
	h, ok := c.byName[name]
	return h, ok
}

// Handles returns all configured handles in ascending order.
func (c *Catalog) Handles() []Handle {
	handles := make([]Handle, 0, len(c.byHandle))
	for h := range c.byHandle {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// Len returns the number of configured tags.
func (c *Catalog) Len() int {
	return len(c.byHandle)
}

// Compile-time interface satisfaction check.
var _ Provider = (*Catalog)(nil)
