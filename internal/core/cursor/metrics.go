package cursor

import (
	"time"
)

const maxTransitions = 10

// advance is one successful pass over a chain.
type advance struct {
	from, to uint64
	at       time.Time
}

func (a advance) blocks() uint64 {
	if a.to < a.from {
		return 0
	}
	return a.to - a.from
}

// Metrics summarises the recent passes of one chain.
type Metrics struct {
	Passes          int     // completed passes since start or last reset
	BlocksScanned   uint64  // blocks covered by those passes
	BlocksPerSecond float64 // over the tracked window
	LastAdvanceAt   *time.Time
	LastRange       [2]uint64 // cursor before and after the last pass
	StateHistory    []Transition
}

// MetricsCollector keeps a bounded window of advances and transitions.
// It is not safe for concurrent use; the manager guards it.
type MetricsCollector struct {
	windowSize  int
	advances    []advance
	transitions []Transition
	passes      int
	blocks      uint64
}

// RecordAdvance records a cursor move made at the end of a pass.
func (mc *MetricsCollector) RecordAdvance(from, to uint64, at time.Time) {
	a := advance{from: from, to: to, at: at}
	mc.passes++
	mc.blocks += a.blocks()

	if len(mc.advances) >= mc.windowSize {
		copy(mc.advances, mc.advances[1:])
		mc.advances[len(mc.advances)-1] = a
		return
	}
	mc.advances = append(mc.advances, a)
}

// RecordTransition records a pass state change.
func (mc *MetricsCollector) RecordTransition(t Transition) {
	if len(mc.transitions) >= maxTransitions {
		copy(mc.transitions, mc.transitions[1:])
		mc.transitions[len(mc.transitions)-1] = t
		return
	}
	mc.transitions = append(mc.transitions, t)
}

// GetMetrics returns a copy of the current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{
		Passes:        mc.passes,
		BlocksScanned: mc.blocks,
		StateHistory:  append([]Transition(nil), mc.transitions...),
	}

	n := len(mc.advances)
	if n == 0 {
		return m
	}
	last := mc.advances[n-1]
	at := last.at
	m.LastAdvanceAt = &at
	m.LastRange = [2]uint64{last.from, last.to}

	// rate between the first and last tracked advance
	if n >= 2 {
		first := mc.advances[0]
		elapsed := last.at.Sub(first.at)
		if elapsed > 0 && last.to > first.to {
			m.BlocksPerSecond = float64(last.to-first.to) / elapsed.Seconds()
		}
	}
	return m
}

// Reset clears the window and counters, used when the cursor is moved by hand.
func (mc *MetricsCollector) Reset() {
	mc.advances = mc.advances[:0]
	mc.transitions = mc.transitions[:0]
	mc.passes = 0
	mc.blocks = 0
}
