package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type keywordsFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadVisionKeywords reads extra routing keywords from an optional YAML
// file of the form:
//
//	keywords:
//	  - heatmap
//	  - confusion matrix
//
// A missing file is not an error; the built-in multilingual set is
// always in effect.
func LoadVisionKeywords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read vision keywords file: %w", err)
	}

	var parsed keywordsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse vision keywords file: %w", err)
	}
	return parsed.Keywords, nil
}
