package download

import (
	"context"
	"time"

	"github.com/oshokin/code-winstaller/internal/logger"
)

const (
	// DefaultWatchdogInterval is how often the watchdog samples progress.
	DefaultWatchdogInterval = 5 * time.Second
	// DefaultMinBytes is the least progress per interval that is not a stall.
	DefaultMinBytes uint64 = 200
)

// Watchdog aborts a transfer that receives fewer than MinBytes in an Interval.
type Watchdog struct {
	// Interval is the sampling period.
	Interval time.Duration
	// MinBytes is the minimum number of bytes expected per Interval.
	MinBytes uint64
}

// Watch samples p until the transfer completes, is aborted, or stalls.
// It only ever touches the abort and stall flags of p.
func (w Watchdog) Watch(ctx context.Context, p *Progress) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !p.Complete() && !p.Aborted() {
		last := p.BytesRead()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if p.Aborted() {
			return
		}

		current := p.BytesRead()
		received := current - last

		logger.DebugKV(ctx, "Download progress", "received", current, "total", p.TotalBytes())

		if received < w.MinBytes && current < p.TotalBytes() {
			logger.WarnKV(ctx, "Stream stalled",
				"received", received,
				"interval", interval,
				"min_bytes", w.MinBytes,
			)
			p.MarkStalled()

			return
		}
	}
}
