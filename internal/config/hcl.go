// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	cerrors "netsys.dev/peeringcoord/internal/errors"
)

// LoadFile reads and decodes the HCL config file at path, applying
// defaults and validating the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.KindInternal, "read config file")
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes config from an in-memory HCL document. filename is used
// only for diagnostic messages.
func LoadBytes(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, cerrors.Wrap(err, cerrors.KindValidation, "decode config")
	}
	cfg.Defaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
