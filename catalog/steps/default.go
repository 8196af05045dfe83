package steps

import "github.com/m3rciful/facetbot/catalog/bucket"

var attr = MustAttribute

// DefaultDefinition is the stock catalog flow: category, type, power, brand, model.
func DefaultDefinition() Definition {
	return Definition{
		Base: DefaultBase,
		Steps: []Step{
			{
				Position: 1,
				Key:      "category",
				Prompt:   "Choose the equipment category",
				Select:   []AttributeRef{attr("typeproduct.name as label")},
				Group:    []AttributeRef{attr("typeproduct.name")},
				Order:    []AttributeRef{attr("typeproduct.name")},
				Where:    attr("typeproduct.name"),
				Joins:    []string{"typeproduct"},
			},
			{
				Position:    2,
				Key:         "type",
				Prompt:      "Choose characteristics",
				Select:      []AttributeRef{attr("character.name as label")},
				Group:       []AttributeRef{attr("character.name")},
				Order:       []AttributeRef{attr("character.name")},
				Where:       attr("character.name"),
				Joins:       []string{"character"},
				MultiSelect: true,
			},
			{
				Position:    3,
				Key:         "power",
				Prompt:      "Choose the cooling power range (kW)",
				Select:      []AttributeRef{attr("product.power as value")},
				Group:       []AttributeRef{attr("product.power")},
				Order:       []AttributeRef{attr("product.power")},
				Where:       attr("product.power"),
				MultiSelect: true,
				Range:       bucket.Spec{Width: 0.4, Step: 0.1, Precision: 1},
			},
			{
				Position:    4,
				Key:         "brand",
				Prompt:      "Choose a brand",
				Select:      []AttributeRef{attr("brand.name as label")},
				Group:       []AttributeRef{attr("brand.name")},
				Order:       []AttributeRef{attr("brand.name")},
				Where:       attr("brand.name"),
				Joins:       []string{"brand"},
				MultiSelect: true,
			},
			{
				Position: 5,
				Key:      "model",
				Prompt:   "Choose a model",
				Select: []AttributeRef{
					attr("product.id"),
					attr("product.model as label"),
					attr("product.description"),
					attr("product.pdf_url as doc_url"),
					attr("product.image_url"),
				},
				Group: []AttributeRef{attr("product.id")},
				Order: []AttributeRef{attr("product.model")},
				Where: attr("product.id"),
				Leaf:  true,
			},
		},
	}
}

// Default builds the registry for DefaultDefinition.
func Default() *Registry {
	r, err := New(DefaultDefinition())
	if err != nil {
		panic(err)
	}
	return r
}
