package runner

import (
	"context"

	"github.com/rs/zerolog"
)

// StuckDetector is implemented by the blocking workflow.
type StuckDetector interface {
	DetectStuck() bool
}

// StuckWatchdog periodically flags operations that stopped making progress.
type StuckWatchdog struct {
	detector StuckDetector
}

func NewStuckWatchdog(detector StuckDetector) *StuckWatchdog {
	return &StuckWatchdog{detector: detector}
}

func (s *StuckWatchdog) Name() string { return "stuck_check" }

func (s *StuckWatchdog) Run(ctx context.Context) error {
	if s.detector.DetectStuck() {
		zerolog.Ctx(ctx).Warn().Msg("Blocking operation marked as stuck, reset required")
	}
	return nil
}
