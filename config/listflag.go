package config

import (
	"fmt"
	"strings"
)

// listFlag is a flag of separated values, optionally restricted to a set of
// allowed ones. In the config file, it is a YAML list.
type listFlag struct {
	sep     string
	allowed map[string]bool
	value   string
	values  []string
}

func newListFlag(sep string, allowed ...string) *listFlag {
	lf := &listFlag{sep: sep, allowed: make(map[string]bool)}
	for _, a := range allowed {
		lf.allowed[a] = true
	}

	return lf
}

func commaListFlag(allowed ...string) *listFlag {
	return newListFlag(",", allowed...)
}

func (lf *listFlag) validate() error {
	if len(lf.allowed) == 0 {
		return nil
	}

	for _, v := range lf.values {
		if !lf.allowed[v] {
			return fmt.Errorf("value not allowed: %s", v)
		}
	}

	return nil
}

func (lf *listFlag) Set(value string) error {
	if lf == nil {
		return nil
	}

	lf.value = value
	lf.values = nil
	if value != "" {
		lf.values = strings.Split(value, lf.sep)
	}

	return lf.validate()
}

func (lf *listFlag) UnmarshalYAML(unmarshal func(any) error) error {
	var values []string
	if err := unmarshal(&values); err != nil {
		return err
	}

	lf.values = values
	lf.value = strings.Join(values, lf.sep)
	return lf.validate()
}

func (lf *listFlag) String() string {
	if lf == nil {
		return ""
	}

	return lf.value
}
