package download

// Hooks provide optional callbacks for progress display and external tracking.
// OnTransferDone is invoked from transfer goroutines and must be safe for
// concurrent use; the other callbacks run on the orchestrator goroutine.
type Hooks interface {
	OnRoundStart(round, pending int)
	OnTransferDone(e Entry, bytes int64, err error)
	OnDropped(f Failure)
}

// MultiHooks fans every callback out to each non-nil member.
type MultiHooks []Hooks

func (m MultiHooks) OnRoundStart(round, pending int) {
	for _, h := range m {
		if h != nil {
			h.OnRoundStart(round, pending)
		}
	}
}

func (m MultiHooks) OnTransferDone(e Entry, bytes int64, err error) {
	for _, h := range m {
		if h != nil {
			h.OnTransferDone(e, bytes, err)
		}
	}
}

func (m MultiHooks) OnDropped(f Failure) {
	for _, h := range m {
		if h != nil {
			h.OnDropped(f)
		}
	}
}
