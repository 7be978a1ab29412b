// Package storage persists run records: what was run, how fast and whether
// it matched the analytic orbit. Particle state is never written.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	recordFile  = "record.json"
	timingsFile = "timings.csv"
)

// ErrNotFound indicates no run with the requested ID.
var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type Record struct {
	ID        string    `json:"id"`
	Preset    string    `json:"preset,omitempty"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`

	Layout    string  `json:"layout"`
	BlockLen  int     `json:"block_len,omitempty"`
	Kernel    string  `json:"kernel"`
	Particles int     `json:"particles"`
	Steps     int     `json:"steps"`
	Dt        float64 `json:"dt"`
	Workers   int     `json:"workers"`

	// Partitions is how many ranges each step was actually split into.
	Partitions int `json:"partitions,omitempty"`

	Elapsed             time.Duration `json:"elapsed_ns"`
	StepsPerSec         float64       `json:"steps_per_sec"`
	ParticleStepsPerSec float64       `json:"particle_steps_per_sec"`

	// MaxDeviation and Passed are set only for runs with an analytic orbit.
	MaxDeviation *float64 `json:"max_deviation,omitempty"`
	Passed       *bool    `json:"passed,omitempty"`

	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Save writes rec and the per-step wall times under a fresh run ID, which
// it returns. rec.ID and rec.Timestamp are filled in when empty.
func (s *Store) Save(rec Record, stepTimes []time.Duration) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, rec.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	err := createFile(filepath.Join(runDir, recordFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	})
	if err != nil {
		return "", err
	}

	err = createFile(filepath.Join(runDir, timingsFile), func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"step", "wall_ns"}); err != nil {
			return err
		}
		for i, d := range stepTimes {
			if err := cw.Write([]string{strconv.Itoa(i), strconv.FormatInt(d.Nanoseconds(), 10)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return "", err
	}

	return rec.ID, nil
}

func createFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeAndClose(f, write)
}

// writeAndClose runs write against f and closes it. A close failure is
// reported when write succeeded.
func writeAndClose(f io.WriteCloser, write func(io.Writer) error) error {
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable record, newest first.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, err
	}

	runs := make([]Record, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *rec)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, recordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", runID, err)
	}
	return &rec, nil
}

func (s *Store) LoadTimings(runID string) ([]time.Duration, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, timingsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []time.Duration{}, nil
	}

	times := make([]time.Duration, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		ns, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			continue
		}
		times = append(times, time.Duration(ns))
	}
	return times, nil
}

// Export writes rec as indented JSON.
func Export(w io.Writer, rec *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
