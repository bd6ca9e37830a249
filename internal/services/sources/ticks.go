package sources

import (
	"sort"

	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/numeric"
)

// SanitizeTicks drops non-aligned, out-of-range and duplicated tick records
// and returns the remainder sorted ascending. Idempotent: sanitizing an
// already-clean list returns it unchanged in content.
func SanitizeTicks(ticks []domain.Tick, tickSpacing int32) []domain.Tick {
	if tickSpacing <= 0 {
		return nil
	}

	out := make([]domain.Tick, 0, len(ticks))
	seen := make(map[int32]bool, len(ticks))
	for _, tk := range ticks {
		if tk.Index%tickSpacing != 0 {
			continue
		}
		if tk.Index < numeric.MinTick || tk.Index > numeric.MaxTick {
			continue
		}
		if seen[tk.Index] {
			continue
		}
		seen[tk.Index] = true
		out = append(out, tk)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
