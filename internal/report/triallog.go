package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"outcomeeval/internal/aggregate"
	"outcomeeval/internal/config"
	"outcomeeval/internal/evaluate"
)

const TrialLogFile = "best_parameters.txt"

// TrialLog is the append-only text log of a run: configuration, then the
// selected hyperparameters of every model per label.
type TrialLog struct {
	path string
}

// OpenTrialLog appends the trial header and the configuration dump to
// <dir>/best_parameters.txt.
func OpenTrialLog(dir string, cfg config.Config, runID string, now time.Time) (*TrialLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { return nil, err }
	l := &TrialLog{path: filepath.Join(dir, TrialLogFile)}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", config.TrialHeader(now))
	fmt.Fprintf(&b, "run_id: %s\n", runID)
	b.WriteString(cfg.YAML())
	return l, l.append(b.String())
}

func (l *TrialLog) Path() string { return l.path }

// Label appends the block of one finished label.
func (l *TrialLog) Label(label string, results []*evaluate.TrialResult, skipped []aggregate.Skipped) error {
	var b strings.Builder
	fmt.Fprintf(&b, "=====\n%s\n=====\n", label)
	for _, r := range results {
		fmt.Fprintf(&b, "%s: %s %s=%.4f threshold=%.4f", r.Model, r.BestParams, r.RefitMetric, r.CVScore, r.Threshold)
		if len(r.Skipped) > 0 { fmt.Fprintf(&b, " skipped_params=%d", len(r.Skipped)) }
		if r.SelectedFeatures != nil { fmt.Fprintf(&b, " features=%s", strings.Join(r.SelectedFeatures, ",")) }
		b.WriteString("\n")
	}
	for _, s := range skipped { fmt.Fprintf(&b, "%s: skipped: %v\n", s.Model, s.Err) }
	return l.append(b.String())
}

// Failure appends a fatal model failure before the run aborts.
func (l *TrialLog) Failure(label, model string, err error) error {
	return l.append(fmt.Sprintf("=====\n%s\n=====\n%s: failed: %v\n", label, model, err))
}

func (l *TrialLog) append(s string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil { return err }
	if _, err := f.WriteString(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
