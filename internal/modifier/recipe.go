package modifier

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Recipe is the YAML document describing a pruning run.
type Recipe struct {
	Version           string                    `yaml:"version,omitempty"`
	PruningModifiers  []GMPruningModifier       `yaml:"pruning_modifiers,omitempty"`
	ConstantModifiers []ConstantPruningModifier `yaml:"constant_modifiers,omitempty"`
}

// ParseRecipe decodes and validates a recipe document.
func ParseRecipe(data []byte) (*Recipe, error) {
	var recipe Recipe
	if err := yaml.Unmarshal(data, &recipe); err != nil {
		return nil, errors.Wrap(err, "decode recipe")
	}
	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// LoadRecipe reads and parses a recipe file.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read recipe %s", path)
	}
	recipe, err := ParseRecipe(data)
	if err != nil {
		return nil, errors.Wrapf(err, "recipe %s", path)
	}
	return recipe, nil
}

// Validate checks every modifier in the recipe.
func (r *Recipe) Validate() error {
	if len(r.PruningModifiers) == 0 && len(r.ConstantModifiers) == 0 {
		return errors.Wrap(ErrConfig, "recipe has no modifiers")
	}
	for i := range r.PruningModifiers {
		if err := r.PruningModifiers[i].Validate(); err != nil {
			return errors.Wrapf(err, "pruning modifier %d", i)
		}
	}
	for i := range r.ConstantModifiers {
		if err := r.ConstantModifiers[i].Validate(); err != nil {
			return errors.Wrapf(err, "constant modifier %d", i)
		}
	}
	return nil
}
