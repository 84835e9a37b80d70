// Package sqlite persists dispatched device samples so they can be queried
// back through the status API.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hsharrison/govrpn/internal/metrics"
	"github.com/hsharrison/govrpn/internal/util"
	"github.com/hsharrison/govrpn/pkg/vrpn"

	_ "github.com/mattn/go-sqlite3"
)

const (
	CREATE_TABLE_STATEMENT = `
	CREATE TABLE IF NOT EXISTS samples (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		receiver   TEXT,
		class      TEXT,
		sensor     INTEGER,
		data       BLOB,
		created_on INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_samples_receiver ON samples(receiver);
	CREATE INDEX IF NOT EXISTS idx_samples_created_on ON samples(created_on);`

	SAMPLE_INSERT_STATEMENT = `
	INSERT INTO samples
		(receiver, class, sensor, data, created_on)
	VALUES
		(?, ?, ?, ?, ?)`

	SAMPLE_SELECT_STATEMENT = `
	SELECT data FROM samples ORDER BY id DESC LIMIT ?`

	SAMPLE_SELECT_BY_RECEIVER_STATEMENT = `
	SELECT data FROM samples WHERE receiver = ? ORDER BY id DESC LIMIT ?`
)

type Config struct {
	Path          string
	BatchSize     int
	FlushInterval time.Duration
}

// Store buffers samples in memory and writes them to sqlite in batched
// transactions, either when the batch fills or on the flush interval.
type Store struct {
	config  *Config
	metrics *metrics.Metrics
	db      *sql.DB

	mu     sync.Mutex
	buffer []*vrpn.Report

	stop chan struct{}
	done chan struct{}
}

func New(config *Config, metrics *metrics.Metrics) *Store {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}

	return &Store{
		config:  config,
		metrics: metrics,
	}
}

func (s *Store) String() string {
	return "store:sqlite"
}

func (s *Store) Start() error {
	db, err := sql.Open("sqlite3", s.config.Path)
	if err != nil {
		return err
	}

	// sqlite supports one writer; also keeps :memory: databases on a
	// single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(CREATE_TABLE_STATEMENT); err != nil {
		return err
	}

	s.db = db
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.flusher()
	return nil
}

func (s *Store) Stop() error {
	close(s.stop)
	<-s.done

	if err := s.Flush(); err != nil {
		slog.Warn("failed to flush store on stop", "error", err)
	}

	return s.db.Close()
}

func (s *Store) Reset() error {
	if s.config.Path == ":memory:" {
		return nil
	}
	return os.Remove(s.config.Path)
}

func (s *Store) flusher() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				slog.Error("failed to flush store", "error", err)
			}
		}
	}
}

// Append buffers one sample. The write happens on the next flush.
func (s *Store) Append(r *vrpn.Report) {
	s.mu.Lock()
	s.buffer = append(s.buffer, r)
	flush := len(s.buffer) >= s.config.BatchSize
	s.mu.Unlock()

	if flush {
		if err := s.Flush(); err != nil {
			slog.Error("failed to flush store", "error", err)
		}
	}
}

// Flush writes all buffered samples in one transaction.
func (s *Store) Flush() error {
	util.Assert(s.db != nil, "db connection is nil")

	s.mu.Lock()
	buffer := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(buffer) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.count("failure", len(buffer))
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.Prepare(SAMPLE_INSERT_STATEMENT)
	if err != nil {
		s.count("failure", len(buffer))
		return err
	}
	defer stmt.Close()

	for _, r := range buffer {
		data, err := json.Marshal(r)
		if err != nil {
			s.count("failure", len(buffer))
			return err
		}
		if _, err := stmt.Exec(r.Receiver, r.Class.String(), r.Sensor, data, r.Time.UnixMilli()); err != nil {
			s.count("failure", len(buffer))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.count("failure", len(buffer))
		return err
	}

	s.count("success", len(buffer))
	return nil
}

// Recent returns up to limit samples, newest first, optionally filtered by
// receiver name.
func (s *Store) Recent(receiver string, limit int) ([]*vrpn.Report, error) {
	util.Assert(s.db != nil, "db connection is nil")

	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if receiver == "" {
		rows, err = s.db.Query(SAMPLE_SELECT_STATEMENT, limit)
	} else {
		rows, err = s.db.Query(SAMPLE_SELECT_BY_RECEIVER_STATEMENT, receiver, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*vrpn.Report
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		report := &vrpn.Report{}
		if err := json.Unmarshal(data, report); err != nil {
			return nil, fmt.Errorf("corrupt sample: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

func (s *Store) count(status string, n int) {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreWrites.WithLabelValues(status).Add(float64(n))
}
