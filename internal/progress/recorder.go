package progress

import (
	"sync"
	"sync/atomic"
)

// Recorder is an Indicator that remembers every label pushed on it and can
// be cancelled explicitly. Safe for concurrent use.
type Recorder struct {
	parent    Indicator
	cancelled atomic.Bool
	polls     atomic.Int64

	mu      sync.Mutex
	stack   []string
	history []string
}

// NewRecorder returns an empty, non-cancelled Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewRecorderFor returns a Recorder layered over parent. States are
// forwarded to parent and a cancelled parent cancels the Recorder.
func NewRecorderFor(parent Indicator) *Recorder {
	return &Recorder{parent: parent}
}

// PushState records label and makes it the current state.
func (r *Recorder) PushState(label string) {
	r.mu.Lock()
	r.stack = append(r.stack, label)
	r.history = append(r.history, label)
	r.mu.Unlock()
	if r.parent != nil {
		r.parent.PushState(label)
	}
}

// PopState drops the current state. Popping an empty stack is a no-op.
func (r *Recorder) PopState() {
	r.mu.Lock()
	if len(r.stack) == 0 {
		r.mu.Unlock()
		return
	}
	r.stack = r.stack[:len(r.stack)-1]
	r.mu.Unlock()
	if r.parent != nil {
		r.parent.PopState()
	}
}

// IsCancelled reports whether Cancel was called or the parent is cancelled.
func (r *Recorder) IsCancelled() bool {
	r.polls.Add(1)
	if r.cancelled.Load() {
		return true
	}
	return r.parent != nil && r.parent.IsCancelled()
}

// Cancel requests cancellation.
func (r *Recorder) Cancel() {
	r.cancelled.Store(true)
}

// Depth returns the number of states currently pushed.
func (r *Recorder) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// History returns every label pushed so far, in order.
func (r *Recorder) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Polls returns how many times IsCancelled was called.
func (r *Recorder) Polls() int64 {
	return r.polls.Load()
}
