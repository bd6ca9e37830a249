package config

import (
	"errors"
	"os"
	"strings"
)

type RPCConfig struct {
	// Endpoints is the ordered fallback list the provider rotates over.
	Endpoints []string
}

func (r *RPCConfig) Load() error {
	raw := os.Getenv("RPC_URLS")
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			r.Endpoints = append(r.Endpoints, u)
		}
	}
	return r.Validate()
}

func (r *RPCConfig) Validate() error {
	if len(r.Endpoints) == 0 {
		return errors.New("invalid rpc config: RPC_URLS is empty")
	}
	return nil
}
