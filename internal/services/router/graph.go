// Package router builds the token graph over fetched pools, enumerates
// candidate paths and selects the best single or split route.
package router

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/halcyontrade/swap-engine/internal/domain"
)

// MaxPoolsPerPair limits pools kept per token pair for faster routing.
const MaxPoolsPerPair = 5

// Graph is an undirected token graph: vertices are tokens, edges are pools.
// Built per search from freshly fetched pools; read-only afterwards.
type Graph struct {
	adj    map[common.Address][]*domain.Pool
	tokens map[common.Address]domain.Token
}

// BuildGraph indexes pools by both endpoints, dropping pools below the
// liquidity floor.
func BuildGraph(pools []*domain.Pool, liquidityFloorUSD float64) *Graph {
	g := &Graph{
		adj:    make(map[common.Address][]*domain.Pool),
		tokens: make(map[common.Address]domain.Token),
	}
	pairCount := make(map[[2]common.Address]int)

	for _, pool := range pools {
		if pool.LiquidityUSD < liquidityFloorUSD {
			continue
		}
		key := [2]common.Address{pool.Token0.Address, pool.Token1.Address}
		if pairCount[key] >= MaxPoolsPerPair {
			continue
		}
		pairCount[key]++

		g.adj[pool.Token0.Address] = append(g.adj[pool.Token0.Address], pool)
		g.adj[pool.Token1.Address] = append(g.adj[pool.Token1.Address], pool)
		g.tokens[pool.Token0.Address] = pool.Token0
		g.tokens[pool.Token1.Address] = pool.Token1
	}
	return g
}

// PoolsFor returns the edge list of a token vertex.
func (g *Graph) PoolsFor(token common.Address) []*domain.Pool {
	return g.adj[token]
}

// TokenCount reports the number of vertices.
func (g *Graph) TokenCount() int {
	return len(g.tokens)
}

// PoolCount reports the number of distinct edges.
func (g *Graph) PoolCount() int {
	seen := make(map[common.Address]bool)
	n := 0
	for _, pools := range g.adj {
		for _, p := range pools {
			if !seen[p.Address] {
				seen[p.Address] = true
				n++
			}
		}
	}
	return n
}
