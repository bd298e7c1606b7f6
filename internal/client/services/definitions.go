package services

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/amoclient/internal/client/client"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
)

// Limits bound list pages and batch chunk sizes. Max 0 means unlimited.
type Limits struct {
	Add    int
	Update int
	Rows   int
	Max    int
}

// DefaultLimits mirrors the row limits of the amoCRM v2 batch endpoints.
func DefaultLimits() Limits {
	return Limits{Add: 300, Update: 300, Rows: 500, Max: 0}
}

// Definition describes one entity service.
type Definition struct {
	// Name is the registry name, e.g. "contacts".
	Name string
	// Entity is the API endpoint and the entity name stamped on models.
	// Defaults to Name.
	Entity string
	// Methods lists the operations the service exposes.
	Methods []client.Operation
	// Required lists the fields every submitted model must carry, per
	// operation.
	Required map[client.Operation][]string
	// Limits overrides the registry limits when non-zero.
	Limits Limits
}

// DefaultRequired returns the required-field sets shared by all entities.
func DefaultRequired() map[client.Operation][]string {
	return map[client.Operation][]string{
		client.OpAdd:    {},
		client.OpUpdate: {models.FieldID, models.FieldUpdatedAt},
	}
}

// Catalog returns the built-in entity services.
func Catalog() []Definition {
	names := []string{"contacts", "leads", "companies", "customers"}
	defs := make([]Definition, 0, len(names))
	for _, n := range names {
		defs = append(defs, Definition{
			Name:     n,
			Entity:   n,
			Methods:  []client.Operation{client.OpList, client.OpAdd, client.OpUpdate},
			Required: DefaultRequired(),
		})
	}
	return defs
}

// Has reports whether the definition declares op.
func (d Definition) Has(op client.Operation) bool {
	return slices.Contains(d.Methods, op)
}

func (d Definition) normalize() (Definition, error) {
	if d.Name == "" {
		return d, fmt.Errorf("%w: name is empty", ErrInvalidDefinition)
	}
	if len(d.Methods) == 0 {
		return d, fmt.Errorf("%w: %s declares no methods", ErrInvalidDefinition, d.Name)
	}
	if d.Entity == "" {
		d.Entity = d.Name
	}
	if d.Required == nil {
		d.Required = DefaultRequired()
	}
	return d, nil
}

func (l Limits) orElse(def Limits) Limits {
	if l.Add <= 0 {
		l.Add = def.Add
	}
	if l.Update <= 0 {
		l.Update = def.Update
	}
	if l.Rows <= 0 {
		l.Rows = def.Rows
	}
	if l.Max <= 0 {
		l.Max = def.Max
	}
	return l
}
