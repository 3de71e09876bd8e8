package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TargetsFile is the on-disk format of --targets-file
type TargetsFile struct {
	Targets []string `yaml:"targets"`
}

// LoadTargetsFile reads the targets listed in a YAML file. Blank entries are
// skipped.
func LoadTargetsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file %s: %w", path, err)
	}

	var tf TargetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse targets file %s: %w", path, err)
	}

	targets := make([]string, 0, len(tf.Targets))
	for _, t := range tf.Targets {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("targets file %s contains no targets", path)
	}
	return targets, nil
}
