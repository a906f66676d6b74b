package kigaliscript

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a Program from a YAML fixture at path.
func LoadFile(path string) (Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return Program{}, fmt.Errorf("kigaliscript: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a Program from r.
func Load(r io.Reader) (Program, error) {
	var prog Program
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&prog); err != nil {
		return Program{}, fmt.Errorf("kigaliscript: decode program: %w", err)
	}
	if prog.StartYear == 0 && prog.EndYear == 0 {
		return Program{}, fmt.Errorf("kigaliscript: program missing startYear/endYear")
	}
	return prog, nil
}
