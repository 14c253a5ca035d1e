package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"buildprice/priceworker/internal/crawler"
	"buildprice/priceworker/internal/matcher"
)

type sourcesFile struct {
	Sources []yaml.Node `yaml:"sources"`
}

// LoadSources reads the source list from a YAML file
func LoadSources(path string) ([]crawler.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes a source list. Sources without is_active are active.
// Entries are not validated here; invalid ones are skipped when crawlers are
// built so one bad entry does not stop the others.
func ParseSources(data []byte) ([]crawler.SourceConfig, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]bool, len(file.Sources))
	sources := make([]crawler.SourceConfig, 0, len(file.Sources))
	for i := range file.Sources {
		src := crawler.SourceConfig{Active: true}
		if err := file.Sources[i].Decode(&src); err != nil {
			return nil, fmt.Errorf("parse source #%d: %w", i+1, err)
		}
		if src.ID != "" && seen[src.ID] {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		sources = append(sources, src)
	}
	return sources, nil
}

type aliasesFile struct {
	Materials map[string]string `yaml:"materials"`
	Aliases   yaml.Node         `yaml:"aliases"`
}

// LoadAliases reads the alias dictionary from a YAML file
func LoadAliases(path string) (*matcher.Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	return ParseAliases(data)
}

// ParseAliases decodes an alias -> material key mapping plus optional
// material display names. Aliases keep their document order.
func ParseAliases(data []byte) (*matcher.Dictionary, error) {
	var file aliasesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}

	node := &file.Aliases
	if node.Kind == 0 {
		return matcher.NewDictionary(nil, file.Materials), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse aliases: line %d: aliases must be a mapping", node.Line)
	}

	aliases := make([]matcher.Alias, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("parse aliases: line %d: alias and key must be strings", k.Line)
		}
		aliases = append(aliases, matcher.Alias{Alias: k.Value, Key: v.Value})
	}
	return matcher.NewDictionary(aliases, file.Materials), nil
}
