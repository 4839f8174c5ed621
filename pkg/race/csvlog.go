package race

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

var runsCSVHeader = []string{
	"run", "car", "weight_g", "time_s", "speed_mph", "scale_mph", "momentum", "ke_j",
}

// CSVRunLogger appends completed runs to runs.csv, the append-only race
// log named in §6. A missing file gets the header row written first.
type CSVRunLogger struct {
	Path string
}

// NewCSVRunLogger returns a RunLogger appending to path.
func NewCSVRunLogger(path string) *CSVRunLogger {
	return &CSVRunLogger{Path: path}
}

var _ RunLogger = (*CSVRunLogger)(nil)

// LogRun appends one row for result, whatever it holds. Finish.Trigger
// never passes it a timing-error result, so runs.csv holds only valid
// timings.
func (l *CSVRunLogger) LogRun(result domain.RaceResult) error {
	needsHeader := false
	if _, err := os.Stat(l.Path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("race: open run log %s: %w", l.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(runsCSVHeader); err != nil {
			return fmt.Errorf("race: write run log header: %w", err)
		}
	}

	row := []string{
		result.RunID,
		result.Car,
		domain.FormatWeight(result.WeightG),
		strconv.FormatFloat(float64(result.ElapsedUs)/1_000_000.0, 'f', 6, 64),
		strconv.FormatFloat(result.SpeedMph, 'f', 4, 64),
		strconv.FormatFloat(result.ScaleMph, 'f', 4, 64),
		strconv.FormatFloat(result.MomentumKgMs, 'f', 4, 64),
		strconv.FormatFloat(result.KineticJ, 'f', 4, 64),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("race: write run log row: %w", err)
	}
	w.Flush()
	return w.Error()
}
