package sources

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
)

const (
	maxRetries       = 2
	backoffBase      = 2 * time.Second
	backoffJitter    = 3 * time.Second
	backoffCap       = 10 * time.Second
)

// retryable reports whether a vendor response or transport error is worth
// another attempt: 429/403 and timeouts are; everything else is final.
func retryable(statusCode int, err error) bool {
	if err != nil {
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return true
		}
		return errors.Is(err, context.DeadlineExceeded)
	}
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusForbidden
}

// withBackoff runs attempt up to maxRetries+1 times with capped exponential
// backoff between tries. attempt returns (statusCode, err).
func withBackoff(ctx context.Context, tag string, attempt func() (int, error)) error {
	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		if try > 0 {
			delay := backoffBase<<uint(try-1) + time.Duration(rand.Int63n(int64(backoffJitter)))
			if delay > backoffCap {
				delay = backoffCap
			}
			log.Debug().Str("source", tag).Int("attempt", try).Dur("delay", delay).
				Msg("[sources] backing off before retry")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return swaperrors.WrapError(swaperrors.KindTimeout, tag, ctx.Err())
			}
		}

		status, err := attempt()
		if err == nil && status < 400 {
			return nil
		}
		if !retryable(status, err) {
			if err != nil {
				return swaperrors.WrapError(swaperrors.KindTransport, tag, err)
			}
			return swaperrors.NewError(swaperrors.KindTransport, tag+": unexpected status")
		}
		if err != nil {
			lastErr = err
		} else if status == http.StatusTooManyRequests {
			lastErr = swaperrors.NewError(swaperrors.KindRateLimited, tag+": rate limited")
		} else {
			lastErr = swaperrors.NewError(swaperrors.KindTransport, tag+": retryable status")
		}
	}
	if swaperrors.IsKind(lastErr, swaperrors.KindRateLimited) {
		return lastErr
	}
	return swaperrors.WrapError(swaperrors.KindTransport, tag+": retries exhausted", lastErr)
}

// rateGate enforces a minimum interval between outbound requests to one
// vendor. The aggregator adapters hold one gate each for the vendor's global
// per-key limit.
type rateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateGate(interval time.Duration) *rateGate {
	return &rateGate{interval: interval}
}

// wait blocks until the interval since the previous request has elapsed.
func (g *rateGate) wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() {
		if sleep := g.interval - time.Since(g.last); sleep > 0 {
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	g.last = time.Now()
	return nil
}
