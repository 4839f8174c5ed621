package sink

import (
	"github.com/rs/zerolog"
)

// LoggingSink satisfies both EventSink and CueSink by logging through
// zerolog, the way the teacher logs everything it can't otherwise act on.
type LoggingSink struct {
	log zerolog.Logger
}

// NewLoggingSink returns a sink writing through log.
func NewLoggingSink(log zerolog.Logger) *LoggingSink {
	return &LoggingSink{log: log}
}

func (s *LoggingSink) BroadcastState(snap Snapshot) error {
	s.log.Info().
		Str("role", string(snap.Role)).
		Str("race_state", snap.RaceState.String()).
		Bool("connected", snap.Connected).
		Str("car", snap.Car).
		Msg("state snapshot")
	return nil
}

func (s *LoggingSink) PlayCue(name string) error {
	s.log.Info().Str("cue", name).Msg("play cue")
	return nil
}
