package config

import (
	"errors"
	"strings"
)

// SourcesConfig controls which quote sources run and how they reach their
// vendors and indexers.
type SourcesConfig struct {
	// AllowedProtocols is the ordered list of source tags dispatched per
	// quote request.
	AllowedProtocols []string

	OdosBaseURL    string
	OneInchBaseURL string
	OneInchAPIKey  string

	// ConcentratedSubgraphURL and WeightedSubgraphURL are the GraphQL pool
	// indexer endpoints.
	ConcentratedSubgraphURL string
	WeightedSubgraphURL     string

	// LiquidityFloorUSD prunes pools below this TVL from routing.
	LiquidityFloorUSD float64

	// MaxHops bounds path enumeration (1..3).
	MaxHops int
}

func (c *SourcesConfig) Load() error {
	raw := getEnvOrDefault("ALLOWED_SOURCES", "router,odos,oneinch")
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			c.AllowedProtocols = append(c.AllowedProtocols, tag)
		}
	}

	c.OdosBaseURL = getEnvOrDefault("ODOS_BASE_URL", "https://api.odos.xyz")
	c.OneInchBaseURL = getEnvOrDefault("ONEINCH_BASE_URL", "https://api.1inch.dev/swap/v6.0/1")
	c.OneInchAPIKey = getEnvOrDefault("ONEINCH_API_KEY", "")
	c.ConcentratedSubgraphURL = getEnvOrDefault("CL_SUBGRAPH_URL", "")
	c.WeightedSubgraphURL = getEnvOrDefault("WEIGHTED_SUBGRAPH_URL", "")
	c.LiquidityFloorUSD = getEnvOrDefaultFloat("LIQUIDITY_FLOOR_USD", 10_000)
	c.MaxHops = getEnvOrDefaultInt("MAX_HOPS", 3)
	return c.Validate()
}

func (c *SourcesConfig) Validate() error {
	if len(c.AllowedProtocols) == 0 {
		return errors.New("invalid sources config: no allowed protocols")
	}
	if c.MaxHops < 1 || c.MaxHops > 3 {
		return errors.New("invalid sources config: MAX_HOPS must be 1..3")
	}
	return nil
}
