package download

import "sync/atomic"

// Progress is the state shared between a Downloader and its Watchdog for one transfer.
type Progress struct {
	bytesRead  atomic.Uint64
	totalBytes uint64
	aborted    atomic.Bool
	stalled    atomic.Bool
}

// NewProgress returns the progress of a transfer expected to carry total bytes.
func NewProgress(total uint64) *Progress {
	return &Progress{totalBytes: total}
}

// Add records n more received bytes and returns the new total.
func (p *Progress) Add(n uint64) uint64 {
	return p.bytesRead.Add(n)
}

// BytesRead returns the number of bytes received so far.
func (p *Progress) BytesRead() uint64 {
	return p.bytesRead.Load()
}

// TotalBytes returns the expected payload size.
func (p *Progress) TotalBytes() uint64 {
	return p.totalBytes
}

// Complete reports whether every expected byte has been received.
func (p *Progress) Complete() bool {
	return p.BytesRead() >= p.totalBytes
}

// Abort asks both parties to stop. It is idempotent.
func (p *Progress) Abort() {
	p.aborted.Store(true)
}

// Aborted reports whether Abort or MarkStalled has been called.
func (p *Progress) Aborted() bool {
	return p.aborted.Load()
}

// MarkStalled flags the transfer as stalled and aborts it.
// The stall flag is stored first so any reader that sees the abort caused
// by a stall also sees the reason.
func (p *Progress) MarkStalled() {
	p.stalled.Store(true)
	p.aborted.Store(true)
}

// Stalled reports whether the watchdog aborted the transfer.
func (p *Progress) Stalled() bool {
	return p.stalled.Load()
}
