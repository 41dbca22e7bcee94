// Package journal persists the last known status of every target in a bbolt
// database so that a separate process can report on a running daemon.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sdejongh/sftpmirror/pkg/models"
	"go.etcd.io/bbolt"
)

const (
	journalVersion = 1
	bucketName     = "targets"
	fileName       = "state.db"

	// openTimeout bounds the wait for the file lock held by another process
	openTimeout = time.Second
)

// ErrNotFound is returned by Get for a target without a record
var ErrNotFound = errors.New("target not found in journal")

// TargetStatus is the persisted status of one target
type TargetStatus struct {
	Version int    `json:"version"`
	Target  string `json:"target"`

	State     models.TargetState `json:"state"`
	Session   string             `json:"session,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`

	LastConnected time.Time `json:"last_connected,omitempty"`
	Connects      int       `json:"connects"`

	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`

	LastReconcile *ReconcileSummary `json:"last_reconcile,omitempty"`
}

// ReconcileSummary is the persisted outcome of a reconciliation pass
type ReconcileSummary struct {
	At       time.Time         `json:"at"`
	Duration time.Duration     `json:"duration"`
	Status   models.Status     `json:"status"`
	Stats    models.Statistics `json:"stats"`
}

// Journal records target status in a bbolt file.
// The database is opened per write so that readers in other processes are
// never locked out for long.
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// DefaultPath returns the journal location under the user config directory
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "sftpmirror", fileName)
}

// Open prepares the journal at path, creating the file and bucket if needed
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{path: path, now: time.Now}
	err := j.update(func(b *bbolt.Bucket) error { return nil })
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Path returns the database file path
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) update(fn func(b *bbolt.Bucket) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	db, err := bbolt.Open(j.path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return fn(b)
	})
}

func (j *Journal) view(fn func(b *bbolt.Bucket) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	db, err := bbolt.Open(j.path, 0600, &bbolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return fn(b)
	})
}

// Update applies fn to the stored status of target and writes it back
func (j *Journal) Update(target string, fn func(s *TargetStatus)) error {
	return j.update(func(b *bbolt.Bucket) error {
		status := TargetStatus{Target: target}
		if v := b.Get([]byte(target)); v != nil {
			if err := json.Unmarshal(v, &status); err != nil {
				return fmt.Errorf("failed to parse status of %s: %w", target, err)
			}
		}

		fn(&status)
		status.Version = journalVersion
		status.Target = target
		status.UpdatedAt = j.now()

		data, err := json.Marshal(&status)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		return b.Put([]byte(target), data)
	})
}

// RecordState stores a state transition. Entering the watching or
// reconciling state with a new session counts as a connect.
func (j *Journal) RecordState(target string, state models.TargetState, session string) error {
	return j.Update(target, func(s *TargetStatus) {
		if session != "" && session != s.Session {
			s.Connects++
			s.LastConnected = j.now()
		}
		s.State = state
		s.Session = session
	})
}

// RecordError stores the last error of a target
func (j *Journal) RecordError(target string, err error) error {
	if err == nil {
		return nil
	}
	return j.Update(target, func(s *TargetStatus) {
		s.LastError = err.Error()
		s.LastErrorAt = j.now()
	})
}

// RecordReconcile stores the summary of a reconciliation pass
func (j *Journal) RecordReconcile(target string, report *models.ReconcileReport) error {
	if report == nil {
		return nil
	}
	return j.Update(target, func(s *TargetStatus) {
		s.LastReconcile = &ReconcileSummary{
			At:       report.EndTime,
			Duration: report.Duration,
			Status:   report.Status,
			Stats:    report.Stats,
		}
	})
}

// Get returns the status of one target
func (j *Journal) Get(target string) (*TargetStatus, error) {
	var status *TargetStatus
	err := j.view(func(b *bbolt.Bucket) error {
		v := b.Get([]byte(target))
		if v == nil {
			return nil
		}
		status = &TargetStatus{}
		return json.Unmarshal(v, status)
	})
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrNotFound
	}
	return status, nil
}

// List returns all recorded targets sorted by name
func (j *Journal) List() ([]TargetStatus, error) {
	var result []TargetStatus
	err := j.view(func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			var status TargetStatus
			if err := json.Unmarshal(v, &status); err != nil {
				return fmt.Errorf("failed to parse status of %s: %w", string(k), err)
			}
			if status.Version > journalVersion {
				return fmt.Errorf("journal version %d is newer than supported version %d", status.Version, journalVersion)
			}
			result = append(result, status)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(a, b int) bool { return result[a].Target < result[b].Target })
	return result, nil
}

// Remove deletes the record of a target
func (j *Journal) Remove(target string) error {
	return j.update(func(b *bbolt.Bucket) error {
		return b.Delete([]byte(target))
	})
}
