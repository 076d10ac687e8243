package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// yamlFlag sets a pointer to an options struct from an inline YAML
// document, e.g. -open-telemetry='{servicename: todos}'. In the config
// file, the struct is written as a regular YAML object.
type yamlFlag[T any] struct {
	target **T
	raw    string
}

func newYamlFlag[T any](target **T) *yamlFlag[T] {
	return &yamlFlag[T]{target: target}
}

func (yf *yamlFlag[T]) Set(value string) error {
	v := new(T)
	if err := yaml.Unmarshal([]byte(value), v); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}

	*yf.target, yf.raw = v, value
	return nil
}

func (yf *yamlFlag[T]) UnmarshalYAML(unmarshal func(any) error) error {
	v := new(T)
	if err := unmarshal(v); err != nil {
		return err
	}

	*yf.target = v
	return nil
}

func (yf *yamlFlag[T]) String() string {
	if yf == nil {
		return ""
	}

	return yf.raw
}
