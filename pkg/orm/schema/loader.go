package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a model definitions document:
//
//	models:
//	  Widget:
//	    timestamps: true
//	    properties:
//	      name: {type: string, required: true}
//	      sku:  {unique: true, validate: "string:1:32"}
type File struct {
	Models map[string]Definition `yaml:"models"`
}

// LoadFile reads model definitions from a YAML file
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model definitions: %w", err)
	}
	return Parse(data)
}

// Parse decodes model definitions from YAML. Definitions are returned sorted by name.
func Parse(data []byte) ([]Definition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model definitions: %w", err)
	}

	defs := make([]Definition, 0, len(f.Models))
	for name, def := range f.Models {
		if def.Name == "" {
			def.Name = name
		}
		for propName, prop := range def.Properties {
			t, err := ParseType(string(prop.Type))
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", name, propName, err)
			}
			m, err := ParseMutability(string(prop.Mutable))
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", name, propName, err)
			}
			prop.Type = t
			prop.Mutable = m
			def.Properties[propName] = prop
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}
