package payout

// EventSink receives structured progress events from a distribution run.
// The core emits events and never formats console output itself; rendering
// belongs to the sinks (log, metrics, notifications).
type EventSink interface {
	PlanBuilt(plan *Plan)
	EntryAttempted(entry Entry, attempt int)
	EntryResult(outcome Outcome)
	RunSealed(report *Report)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) PlanBuilt(*Plan)           {}
func (NopSink) EntryAttempted(Entry, int) {}
func (NopSink) EntryResult(Outcome)       {}
func (NopSink) RunSealed(*Report)         {}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) PlanBuilt(p *Plan) {
	for _, s := range m {
		s.PlanBuilt(p)
	}
}

func (m MultiSink) EntryAttempted(e Entry, attempt int) {
	for _, s := range m {
		s.EntryAttempted(e, attempt)
	}
}

func (m MultiSink) EntryResult(o Outcome) {
	for _, s := range m {
		s.EntryResult(o)
	}
}

func (m MultiSink) RunSealed(r *Report) {
	for _, s := range m {
		s.RunSealed(r)
	}
}
