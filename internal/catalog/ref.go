package catalog

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ProductRef is how callers name a product: by id, by name or slug, or as an
// already loaded product. The set of variants is closed.
type ProductRef interface {
	isProductRef()
	String() string
}

// ByID references a product by primary key.
type ByID struct {
	ID uuid.UUID
}

// ByName references a product by exact name or by the slug of Value.
type ByName struct {
	Value string
}

// Resolved carries a product that was looked up earlier.
type Resolved struct {
	Product models.Product
}

func (ByID) isProductRef()     {}
func (ByName) isProductRef()   {}
func (Resolved) isProductRef() {}

func (r ByID) String() string     { return r.ID.String() }
func (r ByName) String() string   { return r.Value }
func (r Resolved) String() string { return r.Product.ID.String() }

// ParseRef picks the variant for raw caller input. A canonical 36 character
// UUID becomes ByID; anything else is treated as a name or slug.
func ParseRef(raw string) ProductRef {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 36 {
		if id, err := uuid.Parse(trimmed); err == nil {
			return ByID{ID: id}
		}
	}
	return ByName{Value: trimmed}
}
