package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Ryan4n6/MASS-Trap/pkg/wire"
)

// CSVSink writes each reassembled capture to its own
// telemetry_<run_id>.csv file in Dir.
type CSVSink struct {
	Dir string
}

// NewCSVSink returns a sink writing under dir.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

func (s *CSVSink) EmitRun(header wire.TelemetryHeader, samples []PhysicalSample, crcOK bool) error {
	path := filepath.Join(s.Dir, fmt.Sprintf("telemetry_%d.csv", header.RunID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("telemetry: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"timestamp_us", "accel_x_g", "accel_y_g", "accel_z_g", "gyro_x_dps", "gyro_y_dps", "gyro_z_dps"}); err != nil {
		return fmt.Errorf("telemetry: write header: %w", err)
	}
	for _, sample := range samples {
		row := []string{
			strconv.FormatUint(uint64(sample.TimestampUs), 10),
			strconv.FormatFloat(sample.AccelG[0], 'f', 6, 64),
			strconv.FormatFloat(sample.AccelG[1], 'f', 6, 64),
			strconv.FormatFloat(sample.AccelG[2], 'f', 6, 64),
			strconv.FormatFloat(sample.GyroDps[0], 'f', 6, 64),
			strconv.FormatFloat(sample.GyroDps[1], 'f', 6, 64),
			strconv.FormatFloat(sample.GyroDps[2], 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("telemetry: write row: %w", err)
		}
	}
	return nil
}
