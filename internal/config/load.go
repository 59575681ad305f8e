package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Load reads the pipeline file at path and applies defaults.
func Load(path string) (Pipeline, error) {
	p, err := Read(path)
	if err != nil {
		return Pipeline{}, err
	}
	ApplyDefaults(&p)
	return p, nil
}

// Read reads the pipeline file at path without applying defaults, so callers
// can layer overrides first. It decodes TOML when the extension is .toml and
// JSON otherwise. Unknown fields are an error so typos do not silently fall
// back to defaults.
func Read(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	p, err := decode(b, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return Pipeline{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

// Decode decodes b as TOML or JSON and applies defaults.
func Decode(b []byte, isTOML bool) (Pipeline, error) {
	p, err := decode(b, isTOML)
	if err != nil {
		return Pipeline{}, err
	}
	ApplyDefaults(&p)
	return p, nil
}

func decode(b []byte, isTOML bool) (Pipeline, error) {
	var p Pipeline
	if isTOML {
		dec := toml.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	}
	return p, nil
}
