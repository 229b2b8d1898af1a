package avespeed

// renderQueue carries redraw requests from the drivers to the control
// context. It holds at most one pending request: posting while a request
// is pending is a no-op, so requests never pile up faster than they can
// be drawn.
type renderQueue struct {
	pending chan struct{}
}

func newRenderQueue() *renderQueue {
	return &renderQueue{pending: make(chan struct{}, 1)}
}

// post requests a redraw. Safe to call from any goroutine, never blocks.
func (q *renderQueue) post() {
	select {
	case q.pending <- struct{}{}:
	default:
	}
}

// take consumes the pending request, if any.
func (q *renderQueue) take() bool {
	select {
	case <-q.pending:
		return true
	default:
		return false
	}
}

// C exposes the queue for control loops that prefer to select on it.
func (q *renderQueue) C() <-chan struct{} { return q.pending }
