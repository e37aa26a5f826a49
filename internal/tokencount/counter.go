// Package tokencount tracks per-Agent token usage and exposes the usage
// fraction the Compactor consults to decide whether to shrink the
// conversation.
package tokencount

import "sync"

// Counter holds a running estimate of the last completed turn's token
// usage. It is an estimate derived from provider-reported totals; no
// tokeniser of our own is required. A Counter is per-Agent and is reset
// only by an explicit session reset.
type Counter struct {
	mu     sync.RWMutex
	input  int
	output int
}

// New creates an empty Counter.
func New() *Counter {
	return &Counter{}
}

// Update records the input/output token counts reported for the most
// recently completed assistant turn, replacing any prior values.
func (c *Counter) Update(input, output int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = input
	c.output = output
}

// Tokens returns the last recorded (input, output) pair.
func (c *Counter) Tokens() (input, output int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.input, c.output
}

// UsageFraction returns (input+output)/ctxWindow. A non-positive ctxWindow
// yields 0 rather than dividing by zero or inflating to a spurious compact
// trigger.
func (c *Counter) UsageFraction(ctxWindow int) float64 {
	if ctxWindow <= 0 {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return float64(c.input+c.output) / float64(ctxWindow)
}

// Reset clears accumulated usage, used on session reset.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = 0
	c.output = 0
}
