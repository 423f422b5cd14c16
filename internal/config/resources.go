package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"bookable/internal/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ResourcesFile is the root of resources.yaml.
type ResourcesFile struct {
	Resources []models.Resource `yaml:"resources"`
}

// Catalog is an immutable, validated set of resources stamped with a revision.
type Catalog struct {
	Revision  string
	LoadedAt  time.Time
	resources []models.Resource
	byID      map[string]int
}

// NewCatalog validates resources and stamps them with a fresh revision.
func NewCatalog(resources []models.Resource) (*Catalog, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("no resources defined")
	}

	c := &Catalog{
		Revision:  uuid.NewString(),
		LoadedAt:  time.Now(),
		resources: make([]models.Resource, len(resources)),
		byID:      make(map[string]int, len(resources)),
	}

	for i, res := range resources {
		if err := res.Validate(); err != nil {
			return nil, fmt.Errorf("resource[%d]: %w", i, err)
		}
		if _, dup := c.byID[res.ID]; dup {
			return nil, fmt.Errorf("resource[%d]: duplicate id '%s'", i, res.ID)
		}
		res.Revision = c.Revision
		c.resources[i] = res
		c.byID[res.ID] = i
	}

	return c, nil
}

// LoadResources reads and validates a resources file.
func LoadResources(path string) (*Catalog, error) {
	if path == "" {
		path = DefaultResourcesPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resources: %w", err)
	}

	resources, err := ParseResources(data)
	if err != nil {
		return nil, err
	}

	catalog, err := NewCatalog(resources)
	if err != nil {
		return nil, fmt.Errorf("validate resources: %w", err)
	}
	return catalog, nil
}

// ParseResources decodes resources.yaml content without validating it.
func ParseResources(data []byte) ([]models.Resource, error) {
	var file ResourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse resources: %w", err)
	}
	return file.Resources, nil
}

// Resource returns the resource with the given id.
func (c *Catalog) Resource(id string) (models.Resource, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Resource{}, false
	}
	return c.resources[i], true
}

// Resources returns every resource in file order.
func (c *Catalog) Resources() []models.Resource {
	out := make([]models.Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// IDs returns the resource ids sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of resources.
func (c *Catalog) Len() int {
	return len(c.resources)
}
