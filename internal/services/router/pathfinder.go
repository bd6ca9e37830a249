package router

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/halcyontrade/swap-engine/internal/domain"
)

// MaxPathsToEvaluate caps the number of enumerated paths handed to the
// evaluator; enumeration stops once the frontier is full.
const MaxPathsToEvaluate = 24

// Path is an ordered pool sequence from the trade's input token to its
// output token.
type Path []*domain.Pool

// EnumeratePaths lists simple paths from `from` to `to` with at most
// maxHops pools. A path never revisits a token or a pool.
func (g *Graph) EnumeratePaths(from, to common.Address, maxHops int) []Path {
	if maxHops < 1 {
		return nil
	}
	if maxHops > 3 {
		maxHops = 3
	}

	var out []Path
	visitedTokens := map[common.Address]bool{from: true}
	usedPools := map[common.Address]bool{}
	var current Path

	var walk func(token common.Address)
	walk = func(token common.Address) {
		if len(out) >= MaxPathsToEvaluate {
			return
		}
		for _, pool := range g.adj[token] {
			if usedPools[pool.Address] {
				continue
			}
			next, ok := pool.Other(token)
			if !ok {
				continue
			}
			if next.Address == to {
				path := make(Path, len(current)+1)
				copy(path, current)
				path[len(current)] = pool
				out = append(out, path)
				if len(out) >= MaxPathsToEvaluate {
					return
				}
				continue
			}
			if len(current)+1 >= maxHops || visitedTokens[next.Address] {
				continue
			}
			visitedTokens[next.Address] = true
			usedPools[pool.Address] = true
			current = append(current, pool)

			walk(next.Address)

			current = current[:len(current)-1]
			usedPools[pool.Address] = false
			visitedTokens[next.Address] = false
		}
	}

	walk(from)
	return out
}

// Conflicts reports whether two paths share any pool.
func (p Path) Conflicts(other Path) bool {
	for _, a := range p {
		for _, b := range other {
			if a.Address == b.Address {
				return true
			}
		}
	}
	return false
}
