// Package arming implements the start node's three arm-request sources
// (an explicit remote command, a LiDAR dwell detector, a reflectance
// proximity sensor) combined with OR semantics into one pipeline.
package arming

import (
	"time"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

// Source is anything that can request an IDLE -> ARMED transition. Poll
// is called once per main-loop tick and must never block.
type Source interface {
	Poll(now time.Time) (*domain.ArmRequest, bool)
}

// Pipeline OR-combines several sources: the first one with a pending
// request wins this tick. Each source still gets polled every tick so
// none of them starve.
type Pipeline struct {
	sources []Source
}

// NewPipeline returns a Pipeline over sources, polled in the given order.
func NewPipeline(sources ...Source) *Pipeline {
	return &Pipeline{sources: sources}
}

// Poll checks every source in order and returns the first pending
// request.
func (p *Pipeline) Poll(now time.Time) (*domain.ArmRequest, bool) {
	var result *domain.ArmRequest
	for _, s := range p.sources {
		if req, ok := s.Poll(now); ok && result == nil {
			result = req
		}
	}
	if result == nil {
		return nil, false
	}
	return result, true
}
