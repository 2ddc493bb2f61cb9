package state

import (
	"context"

	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// Results is the export shape of a run: the arguments followed by one entry
// per simulated day.
type Results struct {
	Args    core.RunArgs     `json:"args"`
	Timings []core.DayTiming `json:"timings"`
}

// ResultsOf converts a loaded run to its export shape.
func ResultsOf(run *core.Run) *Results {
	timings := run.Timings
	if timings == nil {
		timings = []core.DayTiming{}
	}
	return &Results{Args: run.Args, Timings: timings}
}

// GetResults loads the export shape of a run.
func (s *SQLiteStore) GetResults(ctx context.Context, runID string) (*Results, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return ResultsOf(run), nil
}
