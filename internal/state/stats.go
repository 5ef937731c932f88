package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	statsDBFileMode os.FileMode = 0o600
	statsOpenTimeout            = 5 * time.Second
)

var bucketServiceStats = []byte("service_stats")

// ServiceStats accumulates non-authoritative, derived observability
// counters for one service across daemon restarts.
type ServiceStats struct {
	Name            string    `json:"name"`
	TotalStarts     int64     `json:"total_starts"`
	TotalRestarts   int64     `json:"total_restarts"`
	TotalFailures   int64     `json:"total_failures"`
	LastExitCode    int       `json:"last_exit_code"`
	LastExitMessage string    `json:"last_exit_message"`
	LastTransition  time.Time `json:"last_transition"`
}

// StatsStore persists ServiceStats in a single-bucket BoltDB database,
// separate from the authoritative enabled-set so accumulated counters
// never force a rewrite of the human-editable stored-state file.
type StatsStore struct {
	db *bolt.DB
}

// NewStatsStore opens (creating if necessary) the stats database at path.
func NewStatsStore(path string) (*StatsStore, error) {
	db, err := bolt.Open(path, statsDBFileMode, &bolt.Options{Timeout: statsOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketServiceStats)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init stats schema: %w", err)
	}
	return &StatsStore{db: db}, nil
}

// Close closes the underlying database.
func (s *StatsStore) Close() error { return s.db.Close() }

// Get returns the persisted stats for name, or a zero-valued record keyed
// by name if none exist yet.
func (s *StatsStore) Get(name string) (ServiceStats, error) {
	stats := ServiceStats{Name: name}
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketServiceStats).Get([]byte(name))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &stats)
	})
	return stats, err
}

// RecordStart increments total_starts and, if restart is true, total_restarts.
func (s *StatsStore) RecordStart(name string, restart bool) error {
	return s.update(name, func(st *ServiceStats) {
		st.TotalStarts++
		if restart {
			st.TotalRestarts++
		}
		st.LastTransition = time.Now()
	})
}

// RecordExit records a terminal exit outcome for name.
func (s *StatsStore) RecordExit(name string, code int, message string, failed bool) error {
	return s.update(name, func(st *ServiceStats) {
		st.LastExitCode = code
		st.LastExitMessage = message
		st.LastTransition = time.Now()
		if failed {
			st.TotalFailures++
		}
	})
}

func (s *StatsStore) update(name string, mutate func(*ServiceStats)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketServiceStats)
		stats := ServiceStats{Name: name}
		if v := b.Get([]byte(name)); v != nil {
			if err := json.Unmarshal(v, &stats); err != nil {
				return fmt.Errorf("decoding stats for %s: %w", name, err)
			}
		}
		mutate(&stats)
		encoded, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("encoding stats for %s: %w", name, err)
		}
		return b.Put([]byte(name), encoded)
	})
}
