// Package content provides the read-only lore catalog of laws, permits, and
// treaty documents published by the Corsair Council.
package content

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// ErrNotFound is returned when a law or document id is unknown.
var ErrNotFound = errors.New("content not found")

// Section is one numbered clause of a law.
type Section struct {
	Number string `yaml:"number" json:"number"`
	Text   string `yaml:"text" json:"text"`
}

// Law is a statute of the Council.
type Law struct {
	ID       string    `yaml:"id" json:"id"`
	Title    string    `yaml:"title" json:"title"`
	Sections []Section `yaml:"sections" json:"sections"`
}

// Permit describes a permit the Council issues.
type Permit struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Fee         string `yaml:"fee" json:"fee"`
	Application string `yaml:"application" json:"application"`
	Note        string `yaml:"note" json:"note"`
}

// Signatory is a party who signed a document.
type Signatory struct {
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title" json:"title"`
}

// Document is a treaty, charter, or edict.
type Document struct {
	ID          string      `yaml:"id" json:"id"`
	Title       string      `yaml:"title" json:"title"`
	Description string      `yaml:"description" json:"description"`
	RatifiedOn  string      `yaml:"ratification_date" json:"ratification_date,omitempty"`
	Parties     []string    `yaml:"parties" json:"parties"`
	Text        string      `yaml:"text" json:"text"`
	Signatories []Signatory `yaml:"signatories" json:"signatories"`
	Seal        string      `yaml:"seal" json:"seal,omitempty"`
}

// RatificationDate returns the parsed ratification date. Documents that were
// never ratified report false.
func (d Document) RatificationDate() (time.Time, bool) {
	if d.RatifiedOn == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", d.RatifiedOn)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Catalog holds every piece of lore content. It is immutable once loaded.
type Catalog struct {
	laws      []Law
	permits   []Permit
	documents []Document

	lawsByID      map[string]int
	documentsByID map[string]int
}

// Load parses the embedded catalog data.
func Load() (*Catalog, error) {
	var laws struct {
		Laws []Law `yaml:"laws"`
	}
	var permits struct {
		Permits []Permit `yaml:"permits"`
	}
	var documents struct {
		Documents []Document `yaml:"documents"`
	}

	for file, out := range map[string]any{
		"data/laws.yaml":      &laws,
		"data/permits.yaml":   &permits,
		"data/documents.yaml": &documents,
	} {
		raw, err := dataFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		if err := yaml.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
	}

	return NewCatalog(laws.Laws, permits.Permits, documents.Documents)
}

// NewCatalog builds a catalog from the given entries. Law and document ids
// must be unique.
func NewCatalog(laws []Law, permits []Permit, documents []Document) (*Catalog, error) {
	c := &Catalog{
		laws:          laws,
		permits:       permits,
		documents:     documents,
		lawsByID:      make(map[string]int, len(laws)),
		documentsByID: make(map[string]int, len(documents)),
	}

	for i, l := range laws {
		if _, dup := c.lawsByID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate law id %q", l.ID)
		}
		c.lawsByID[l.ID] = i
	}
	for i, d := range documents {
		if _, dup := c.documentsByID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %q", d.ID)
		}
		if d.Parties == nil {
			c.documents[i].Parties = []string{}
		}
		if d.Signatories == nil {
			c.documents[i].Signatories = []Signatory{}
		}
		if d.Text == "" {
			c.documents[i].Text = "No document text available."
		}
		c.documentsByID[d.ID] = i
	}

	return c, nil
}

// Laws returns all laws in catalog order.
func (c *Catalog) Laws() []Law {
	return c.laws
}

// Law returns the law with the given id.
func (c *Catalog) Law(id string) (Law, error) {
	i, ok := c.lawsByID[id]
	if !ok {
		return Law{}, ErrNotFound
	}
	return c.laws[i], nil
}

// Permits returns all permit descriptions in catalog order.
func (c *Catalog) Permits() []Permit {
	return c.permits
}

// PermitNames returns the name of every permit, used to populate the
// application form.
func (c *Catalog) PermitNames() []string {
	names := make([]string, len(c.permits))
	for i, p := range c.permits {
		names[i] = p.Name
	}
	return names
}

// Documents returns all documents in catalog order.
func (c *Catalog) Documents() []Document {
	return c.documents
}

// Document returns the document with the given id.
func (c *Catalog) Document(id string) (Document, error) {
	i, ok := c.documentsByID[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return c.documents[i], nil
}
