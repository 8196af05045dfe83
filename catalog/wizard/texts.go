package wizard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Texts holds every user-facing string of the wizard.
type Texts struct {
	Greeting    string `yaml:"greeting"`
	About       string `yaml:"about"`
	AboutButton string `yaml:"about_button"`
	BeginButton string `yaml:"begin_button"`
	Back        string `yaml:"back"`
	Start       string `yaml:"start"`
	Commit      string `yaml:"commit"`
	Selected    string `yaml:"selected"`
	NoData      string `yaml:"no_data"`
	TryLater    string `yaml:"try_later"`
	Reselect    string `yaml:"reselect"`
	Unavailable string `yaml:"unavailable"`
	NoPrior     string `yaml:"no_prior"`
	Unknown     string `yaml:"unknown"`
	Outdated    string `yaml:"outdated"`
	Busy        string `yaml:"busy"`
	DetailDoc   string `yaml:"detail_doc"`
	DetailName  string `yaml:"detail_name"`
	DetailDesc  string `yaml:"detail_description"`
}

// DefaultTexts returns the stock English texts.
func DefaultTexts() Texts {
	return Texts{
		Greeting:    "Hello! I will help you pick equipment from the catalog.",
		About:       "This bot walks you through the catalog step by step: pick a category, narrow it down by characteristics, power and brand, then open a model card.",
		AboutButton: "About",
		BeginButton: "Select category",
		Back:        "Back",
		Start:       "To start",
		Commit:      "Apply and continue",
		Selected:    "✅ ",
		NoData:      "No data found.",
		TryLater:    "No results right now, please try again.",
		Reselect:    "This selection is no longer valid, please select again.",
		Unavailable: "This item is no longer available.",
		NoPrior:     "Nothing to go back to.",
		Unknown:     "Unknown action.",
		Outdated:    "This menu is outdated.",
		Busy:        "Please wait, the previous action is still running.",
		DetailDoc:   "Open PDF",
		DetailName:  "Name",
		DetailDesc:  "Description",
	}
}

// Merge fills empty fields of t from def.
func (t Texts) Merge(def Texts) Texts {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&t.Greeting, def.Greeting)
	fill(&t.About, def.About)
	fill(&t.AboutButton, def.AboutButton)
	fill(&t.BeginButton, def.BeginButton)
	fill(&t.Back, def.Back)
	fill(&t.Start, def.Start)
	fill(&t.Commit, def.Commit)
	fill(&t.Selected, def.Selected)
	fill(&t.NoData, def.NoData)
	fill(&t.TryLater, def.TryLater)
	fill(&t.Reselect, def.Reselect)
	fill(&t.Unavailable, def.Unavailable)
	fill(&t.NoPrior, def.NoPrior)
	fill(&t.Unknown, def.Unknown)
	fill(&t.Outdated, def.Outdated)
	fill(&t.Busy, def.Busy)
	fill(&t.DetailDoc, def.DetailDoc)
	fill(&t.DetailName, def.DetailName)
	fill(&t.DetailDesc, def.DetailDesc)
	return t
}

// LoadTexts reads the optional "texts" section of a YAML file and fills the
// gaps from DefaultTexts.
func LoadTexts(path string) (Texts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Texts{}, fmt.Errorf("wizard: read %s: %w", path, err)
	}
	var doc struct {
		Texts Texts `yaml:"texts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Texts{}, fmt.Errorf("wizard: parse %s: %w", path, err)
	}
	return doc.Texts.Merge(DefaultTexts()), nil
}
