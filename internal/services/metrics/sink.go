// Package metrics records routing outcomes.
package metrics

// Sink receives one report per routed request. Implementations must be
// safe for concurrent use.
type Sink interface {
	RecordRoutingDecision(model, reason string)
	ObserveLatency(model string, seconds float64)
	SetQueueDepth(model string, depth int64)
	RecordError(model, errorType string)
	RecordDegraded(model string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRoutingDecision(string, string) {}
func (Nop) ObserveLatency(string, float64)       {}
func (Nop) SetQueueDepth(string, int64)          {}
func (Nop) RecordError(string, string)           {}
func (Nop) RecordDegraded(string)                {}

// Fanout forwards every report to each sink in order.
type Fanout []Sink

func (f Fanout) RecordRoutingDecision(model, reason string) {
	for _, s := range f {
		s.RecordRoutingDecision(model, reason)
	}
}

func (f Fanout) ObserveLatency(model string, seconds float64) {
	for _, s := range f {
		s.ObserveLatency(model, seconds)
	}
}

func (f Fanout) SetQueueDepth(model string, depth int64) {
	for _, s := range f {
		s.SetQueueDepth(model, depth)
	}
}

func (f Fanout) RecordError(model, errorType string) {
	for _, s := range f {
		s.RecordError(model, errorType)
	}
}

func (f Fanout) RecordDegraded(model string) {
	for _, s := range f {
		s.RecordDegraded(model)
	}
}
