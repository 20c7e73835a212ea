// Package rules loads detection and classification rule tables from a YAML
// file, falling back to the compiled-in defaults for any section the file
// omits.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"threatgate/internal/application"
	"threatgate/internal/domain"
)

// InjectionRules overrides the injection pattern tables and sanitizer list.
type InjectionRules struct {
	Tables     []domain.PatternTable `yaml:"tables"`
	Sanitizers []string              `yaml:"sanitizers"`
}

// File is the on-disk rule document. Every section is optional.
type File struct {
	Injection  InjectionRules          `yaml:"injection"`
	Classifier domain.ClassifierTables `yaml:"classifier"`
}

// Default returns the compiled-in rule set.
func Default() *File {
	return &File{
		Injection: InjectionRules{
			Tables:     application.DefaultInjectionTables(),
			Sanitizers: application.DefaultSanitizerRules(),
		},
		Classifier: application.DefaultClassifierTables(),
	}
}

// Load parses the rule file at path and fills omitted sections from the
// defaults. An empty path returns the defaults unchanged.
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	defaults := Default()
	if len(f.Injection.Tables) == 0 {
		f.Injection.Tables = defaults.Injection.Tables
	}
	if len(f.Injection.Sanitizers) == 0 {
		f.Injection.Sanitizers = defaults.Injection.Sanitizers
	}
	if len(f.Classifier.CIA) == 0 {
		f.Classifier.CIA = defaults.Classifier.CIA
	}
	if len(f.Classifier.AAA) == 0 {
		f.Classifier.AAA = defaults.Classifier.AAA
	}
	if len(f.Classifier.STRIDE) == 0 {
		f.Classifier.STRIDE = defaults.Classifier.STRIDE
	}
	if len(f.Classifier.OWASP) == 0 {
		f.Classifier.OWASP = defaults.Classifier.OWASP
	}
	return &f, nil
}
