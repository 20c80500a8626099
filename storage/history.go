// Package storage persists completed audit reports for later retrieval.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/diagaudit/diagaudit/report"
)

// Bucket names in bbolt
var (
	bucketRuns = []byte("runs")
	bucketMeta = []byte("meta")
)

var keyCurrentRun = []byte("current_run")

// RunRecord is the index entry for one persisted audit run.
type RunRecord struct {
	RunID        int64     `json:"run_id"`
	Environment  string    `json:"environment"`
	Timestamp    time.Time `json:"timestamp"`
	Total        int       `json:"total"`
	NonCompliant int       `json:"non_compliant"`
}

// HistoryStore keeps every completed report on disk with an in-memory
// btree index over run IDs for fast latest/listing queries.
type HistoryStore struct {
	mu sync.RWMutex

	index *btree.BTreeG[*RunRecord]
	db    *bbolt.DB

	currentRun int64
	dir        string
}

// NewHistoryStore opens or creates the history database in dir.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	dbPath := filepath.Join(dir, "diagaudit.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &HistoryStore{
		index: btree.NewG[*RunRecord](32, func(a, b *RunRecord) bool {
			return a.RunID < b.RunID
		}),
		db:  db,
		dir: dir,
	}

	if err := store.loadRunCounter(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the store.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// SaveRun persists a report and returns its run ID.
func (s *HistoryStore) SaveRun(r *report.Report) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to persist inconsistent report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runID := s.currentRun + 1

	data, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put(runKey(runID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyCurrentRun, runKey(runID))
	})
	if err != nil {
		return 0, fmt.Errorf("persist run %d: %w", runID, err)
	}

	s.currentRun = runID
	s.index.ReplaceOrInsert(&RunRecord{
		RunID:        runID,
		Environment:  r.Environment,
		Timestamp:    r.Timestamp,
		Total:        r.TotalResources,
		NonCompliant: r.NonCompliantResources,
	})

	return runID, nil
}

// GetRun loads one report by run ID.
func (s *HistoryStore) GetRun(runID int64) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r report.Report
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get(runKey(runID))
		if data == nil {
			return fmt.Errorf("run %d not found", runID)
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LastRun returns the most recent report, optionally filtered by
// environment. An empty environment matches any run.
func (s *HistoryStore) LastRun(environment string) (*report.Report, error) {
	s.mu.RLock()

	var found *RunRecord
	s.index.Descend(func(rec *RunRecord) bool {
		if environment == "" || rec.Environment == environment {
			found = rec
			return false
		}
		return true
	})
	s.mu.RUnlock()

	if found == nil {
		return nil, fmt.Errorf("no runs recorded for environment %q", environment)
	}
	return s.GetRun(found.RunID)
}

// ListRuns returns up to limit index records, newest first.
func (s *HistoryStore) ListRuns(limit int) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []RunRecord
	s.index.Descend(func(rec *RunRecord) bool {
		records = append(records, *rec)
		return limit <= 0 || len(records) < limit
	})
	return records
}

func (s *HistoryStore) loadRunCounter() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyCurrentRun)
		if data != nil {
			s.currentRun = int64(binary.BigEndian.Uint64(data))
		}
		return nil
	})
}

// rebuildIndex restores the in-memory index from disk on open.
func (s *HistoryStore) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var r report.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt run record: %w", err)
			}
			s.index.ReplaceOrInsert(&RunRecord{
				RunID:        int64(binary.BigEndian.Uint64(k)),
				Environment:  r.Environment,
				Timestamp:    r.Timestamp,
				Total:        r.TotalResources,
				NonCompliant: r.NonCompliantResources,
			})
			return nil
		})
	})
}

func runKey(runID int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(runID))
	return key
}
