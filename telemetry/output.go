package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/artinkavousi/Webfluidsystem/config"
	"github.com/gocarina/gocsv"
)

// QualityRecord is one quality controller decision.
type QualityRecord struct {
	Tick    int64   `csv:"tick"`
	SimTime float64 `csv:"sim_time"`
	From    string  `csv:"from"`
	To      string  `csv:"to"`
	MeanFPS float64 `csv:"mean_fps"`
}

// OutputManager handles run output with CSV logging.
type OutputManager struct {
	dir         string
	perfFile    *os.File
	qualityFile *os.File

	// Track if headers have been written
	perfHeaderWritten    bool
	qualityHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	f, err = os.Create(filepath.Join(dir, "quality.csv"))
	if err != nil {
		om.perfFile.Close()
		return nil, fmt.Errorf("creating quality.csv: %w", err)
	}
	om.qualityFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, tick int64) error {
	if om == nil {
		return nil
	}
	records := []PerfStatsCSV{stats.ToCSV(tick)}
	if err := writeRecords(om.perfFile, records, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteQuality writes a quality step to quality.csv.
func (om *OutputManager) WriteQuality(r QualityRecord) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.qualityFile, []QualityRecord{r}, &om.qualityHeaderWritten); err != nil {
		return fmt.Errorf("writing quality: %w", err)
	}
	return nil
}

// writeRecords marshals with a header on the first write only.
func writeRecords(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.perfFile, om.qualityFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
