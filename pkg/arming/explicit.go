package arming

import (
	"sync/atomic"
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// Explicit is the arm source driven by a received ARM_CMD frame: some
// other goroutine calls Fire when the frame arrives, and the next Poll
// reports it exactly once.
type Explicit struct {
	pending atomic.Bool
}

// NewExplicit returns an Explicit source with no pending request.
func NewExplicit() *Explicit {
	return &Explicit{}
}

// Fire marks a pending arm request, to be consumed by the next Poll.
func (e *Explicit) Fire() {
	e.pending.Store(true)
}

// Poll reports and clears a pending request, if any.
func (e *Explicit) Poll(now time.Time) (*domain.ArmRequest, bool) {
	if e.pending.CompareAndSwap(true, false) {
		return &domain.ArmRequest{Source: domain.ArmSourceExplicit}, true
	}
	return nil, false
}
