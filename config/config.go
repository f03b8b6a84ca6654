// Package config owns the provisioning request type, its validation rules,
// and the construction of the GitHub client shared by every component that
// talks to the repository host.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// DefaultFile is the request file read when no flags override it.
const DefaultFile = "infrarepo.yaml"

// Load reads a provisioning request from the given YAML file.
// Defaults are filled in; validation is left to the caller so that the
// interactive path can still prompt for missing fields.
func Load(path string) (*Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var req Request
	if err := yaml.NewDecoder(f).Decode(&req); err != nil {
		return nil, fmt.Errorf("unable to decode yaml: %w", err)
	}

	req = req.WithDefaults()

	return &req, nil
}
