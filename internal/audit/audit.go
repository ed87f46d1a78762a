// Package audit persists one immutable record per payout run. The JSON
// file is the authoritative record; a CSV export of the same outcomes is
// written alongside it for spreadsheet reconciliation.
package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"payout-engine/internal/infra/fs"
	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/payout"
)

const (
	recordDirName = "audit"
	recordPrefix  = "run_"
	// Record keys are the run start timestamp in UTC, so the trailing
	// literal Z is honest.
	keyLayout = "20060102T150405Z"
)

// RunKey derives the record key for a run from its start timestamp.
func RunKey(startedAt time.Time) string {
	return startedAt.UTC().Format(keyLayout)
}

// Writer stores audit records under <dataDir>/audit.
type Writer struct {
	dir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dir: filepath.Join(dataDir, recordDirName)}
}

// Dir returns the directory audit records are written to.
func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) jsonPath(key string) string {
	return filepath.Join(w.dir, recordPrefix+key+".json")
}

func (w *Writer) csvPath(key string) string {
	return filepath.Join(w.dir, recordPrefix+key+".csv")
}

// Seal writes the record for a finished run and returns the JSON path.
// A run is sealed exactly once: if a record with the same key already
// exists, Seal refuses rather than overwrite history.
func (w *Writer) Seal(report *payout.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("cannot seal a nil report")
	}
	if report.StartedAt.IsZero() {
		return "", fmt.Errorf("cannot seal a report without a start timestamp")
	}

	key := RunKey(report.StartedAt)
	jsonPath := w.jsonPath(key)
	if fs.Exists(jsonPath) {
		return "", fmt.Errorf("audit record %s already exists", filepath.Base(jsonPath))
	}

	if err := fs.SaveJSON(jsonPath, report); err != nil {
		return "", fmt.Errorf("failed to write audit record: %w", err)
	}

	// The JSON record is already on disk at this point, so a CSV problem
	// must not fail the seal. It would make a retry collide with the
	// exactly-once guard.
	if err := w.writeCSV(key, report); err != nil {
		logging.LogWarn("CSV export failed, JSON record is intact",
			zap.String("key", key),
			zap.Error(err))
	}

	logging.LogSuccess("Audit record sealed",
		zap.String("key", key),
		zap.Int("outcomes", len(report.Outcomes)),
		zap.Bool("aborted", report.Aborted))

	return jsonPath, nil
}

func (w *Writer) writeCSV(key string, report *payout.Report) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	rows := [][]string{
		{"account", "amount", "status", "tx_id", "retries", "error", "timestamp"},
	}
	for _, o := range report.Outcomes {
		rows = append(rows, []string{
			o.Account,
			o.Amount.String(),
			string(o.Status),
			o.TxID,
			fmt.Sprintf("%d", o.Retries),
			o.ErrorDetail,
			o.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}

	return fs.SaveBytes(w.csvPath(key), buf.Bytes())
}

// List returns the keys of all stored records, oldest first. A missing
// audit directory means no runs yet, not an error.
func (w *Writer) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, recordPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, recordPrefix), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Latest returns the key of the most recent record, or "" when no run
// has been recorded yet.
func (w *Writer) Latest() (string, error) {
	keys, err := w.List()
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[len(keys)-1], nil
}

// Load reads the record with the given key back into memory.
func (w *Writer) Load(key string) (*payout.Report, error) {
	var report payout.Report
	if err := fs.LoadJSON(w.jsonPath(key), &report); err != nil {
		return nil, fmt.Errorf("failed to load audit record %s: %w", key, err)
	}
	return &report, nil
}

// HasRunOn reports whether any run started on the given calendar day.
// Keys are stored in UTC, so each one is converted into the day's
// location before comparing dates.
func (w *Writer) HasRunOn(day time.Time) (bool, error) {
	keys, err := w.List()
	if err != nil {
		return false, err
	}

	y, m, d := day.Date()
	for _, key := range keys {
		started, err := time.Parse(keyLayout, key)
		if err != nil {
			continue
		}
		ky, km, kd := started.In(day.Location()).Date()
		if ky == y && km == m && kd == d {
			return true, nil
		}
	}
	return false, nil
}
