package sources

import (
	"math/big"
	"testing"

	"github.com/halcyontrade/swap-engine/internal/domain"
)

func tick(idx int32) domain.Tick {
	return domain.Tick{Index: idx, LiquidityNet: big.NewInt(1), LiquidityGross: big.NewInt(1)}
}

func TestSanitizeTicksOrdersAndFilters(t *testing.T) {
	in := []domain.Tick{
		tick(120),
		tick(-60),
		tick(7), // misaligned for spacing 60
		tick(0),
		tick(887340), // aligned but beyond MaxTick
		tick(-60),    // duplicate
	}

	out := SanitizeTicks(in, 60)
	want := []int32{-60, 0, 120}
	if len(out) != len(want) {
		t.Fatalf("got %d ticks, want %d", len(out), len(want))
	}
	for i, idx := range want {
		if out[i].Index != idx {
			t.Errorf("tick %d: got index %d, want %d", i, out[i].Index, idx)
		}
	}
}

func TestSanitizeTicksStrictlyIncreasing(t *testing.T) {
	in := []domain.Tick{tick(600), tick(-600), tick(0), tick(1200), tick(-1200)}
	out := SanitizeTicks(in, 60)
	for i := 1; i < len(out); i++ {
		if out[i].Index <= out[i-1].Index {
			t.Fatalf("ticks not strictly increasing at %d: %d then %d", i, out[i-1].Index, out[i].Index)
		}
	}
}

func TestSanitizeTicksIdempotent(t *testing.T) {
	in := []domain.Tick{tick(13), tick(-60), tick(60), tick(60), tick(0)}
	once := SanitizeTicks(in, 60)
	twice := SanitizeTicks(once, 60)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Index != twice[i].Index {
			t.Errorf("second pass changed index at %d: %d vs %d", i, once[i].Index, twice[i].Index)
		}
	}
}

func TestSanitizeTicksBadSpacing(t *testing.T) {
	if out := SanitizeTicks([]domain.Tick{tick(0)}, 0); out != nil {
		t.Fatalf("expected nil for zero spacing, got %v", out)
	}
	if out := SanitizeTicks([]domain.Tick{tick(0)}, -10); out != nil {
		t.Fatalf("expected nil for negative spacing, got %v", out)
	}
}
