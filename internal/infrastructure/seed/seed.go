// Package seed reads the optional settings seed file.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"formfill/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML seed. A missing file yields an empty seed.
func Load(path string) (entity.SettingsSeed, error) {
	var s entity.SettingsSeed
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (entity.SettingsSeed, error) {
	var s entity.SettingsSeed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("parse seed: %w", err)
	}
	for i, k := range s.APIKeys {
		if k.APIKey == "" {
			continue
		}
		s.APIKeys[i].APIKey = os.ExpandEnv(k.APIKey)
	}
	return s, nil
}
