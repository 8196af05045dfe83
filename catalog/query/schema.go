package query

import (
	"fmt"

	"github.com/m3rciful/facetbot/catalog/steps"
)

// Hop is one JOIN clause: Table joined on Left = Right, where both sides are
// "entity.column" references.
type Hop struct {
	Table string `yaml:"table"`
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// Schema maps relation names used by steps to the joins that reach them.
type Schema struct {
	Relations map[string][]Hop `yaml:"relations"`
}

// DefaultSchema describes the stock catalog tables.
func DefaultSchema() Schema {
	return Schema{Relations: map[string][]Hop{
		"typeproduct": {
			{Table: "typeproduct", Left: "typeproduct.id", Right: "product.typeproduct_id"},
		},
		"brand": {
			{Table: "brand", Left: "brand.id", Right: "product.brand_id"},
		},
		"character": {
			{Table: "product_character_association", Left: "product_character_association.product_id", Right: "product.id"},
			{Table: "character", Left: "character.id", Right: "product_character_association.character_id"},
		},
	}}
}

// Validate checks that every join a registry references is known.
func (s Schema) Validate(reg *steps.Registry) error {
	for _, st := range reg.Steps() {
		for _, j := range st.Joins {
			if _, ok := s.Relations[j]; !ok {
				return fmt.Errorf("%w: %q at position %d", ErrUnknownJoin, j, st.Position)
			}
		}
	}
	return nil
}
