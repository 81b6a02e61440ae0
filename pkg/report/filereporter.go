package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/tidemark/harvest/pkg/sources"
)

// FileReporter writes run artifacts into Dir:
//
//	report_<ts>.json  - summary, counters and quality history
//	dataset_<ts>.csv  - validated records, union-of-fields header
//	report_<ts>.md    - human-readable summary
//
// The directory is created on first use.
type FileReporter struct {
	// Dir is the output directory. Required.
	Dir string

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Report implements Reporter. Artifacts are written independently; the first
// failure aborts and is returned, leaving earlier artifacts in place.
func (f *FileReporter) Report(ctx context.Context, dataset []sources.Record, summary Summary) error {
	if f.Dir == "" {
		return fmt.Errorf("file reporter: Dir is required")
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	stamp := now.UTC().Format("20060102_150405")

	if err := f.writeJSON(filepath.Join(f.Dir, "report_"+stamp+".json"), summary); err != nil {
		return err
	}
	if err := f.writeCSV(filepath.Join(f.Dir, "dataset_"+stamp+".csv"), dataset); err != nil {
		return err
	}
	if err := f.writeMarkdown(filepath.Join(f.Dir, "report_"+stamp+".md"), summary); err != nil {
		return err
	}
	return nil
}

func (f *FileReporter) writeJSON(path string, summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// writeCSV emits one row per record over the union of all field names, sorted
// for a stable header. Missing fields are empty cells.
func (f *FileReporter) writeCSV(path string, dataset []sources.Record) error {
	fieldSet := make(map[string]bool)
	for _, rec := range dataset {
		for k := range rec {
			fieldSet[k] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("write dataset header: %w", err)
	}
	row := make([]string, len(fields))
	for _, rec := range dataset {
		for i, field := range fields {
			row[i] = cellValue(rec[field])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write dataset row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}
	return nil
}

func (f *FileReporter) writeMarkdown(path string, s Summary) error {
	status := "completed"
	if s.Aborted {
		status = "aborted: " + s.AbortCause
	} else if s.RecordsCollected == 0 {
		status = "completed (no data available)"
	}

	md := fmt.Sprintf(`# Collection report: %s

Generated: %s

## Run

- **Status**: %s
- **Duration**: %s
- **Records collected**: %d

## Requests

- **Total**: %d
- **Successful**: %d
- **Failed**: %d
- **Success rate**: %.1f%%

## Quality

- **Mean quality score**: %.2f
- **Final delay multiplier**: %.2f
- **Batches scored**: %d
`,
		s.Run,
		s.FinishedAt.UTC().Format(time.RFC3339),
		status,
		s.Duration,
		s.RecordsCollected,
		s.TotalRequests,
		s.SuccessfulRequests,
		s.FailedRequests,
		s.SuccessRate*100,
		s.MeanQuality,
		s.DelayMultiplier,
		len(s.QualityHistory),
	)

	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}

func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
