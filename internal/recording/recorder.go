// Package recording persists every bus transaction to a SQLite database
// for later inspection, batching writes and flushing at process exit.
package recording

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cohsim/internal/coherence"
)

const batchSize = 1000

// Recorder buffers coherence.Transactions and flushes them to SQLite.
type Recorder struct {
	db   *sql.DB
	stmt *sql.Stmt

	path    string
	buf     []entry
	flushed bool
}

type entry struct {
	cycle int
	tx    coherence.Transaction
}

// NewRecorder builds a Recorder that will write to the SQLite file at
// path once Init is called.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Init opens the database, creates the transactions table, and registers
// a final flush at process exit.
func (r *Recorder) Init() error {
	db, err := sql.Open("sqlite3", r.path)
	if err != nil {
		return fmt.Errorf("recording: open %s: %w", r.path, err)
	}

	r.db = db

	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS bus_transactions (
			id      TEXT    NOT NULL,
			cycle   INTEGER NOT NULL,
			type    TEXT    NOT NULL,
			address INTEGER NOT NULL,
			source  INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("recording: create table: %w", err)
	}

	stmt, err := r.db.Prepare(
		`INSERT INTO bus_transactions (id, cycle, type, address, source) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("recording: prepare insert: %w", err)
	}

	r.stmt = stmt

	atexit.Register(func() { _ = r.Flush() })

	return nil
}

// ObserveTransaction implements coherence.TransactionObserver: it buffers
// one cycle's bus transaction, flushing once the buffer fills.
func (r *Recorder) ObserveTransaction(cycle int, tx coherence.Transaction) {
	r.buf = append(r.buf, entry{cycle: cycle, tx: tx})

	if len(r.buf) >= batchSize {
		_ = r.Flush()
	}
}

// Flush writes every buffered transaction to the database in one
// transaction.
func (r *Recorder) Flush() error {
	if len(r.buf) == 0 {
		return nil
	}

	sqlTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("recording: begin: %w", err)
	}

	for _, e := range r.buf {
		if _, err := sqlTx.Stmt(r.stmt).Exec(
			e.tx.ID, e.cycle, e.tx.Type.String(), e.tx.Address, e.tx.Source,
		); err != nil {
			_ = sqlTx.Rollback()
			return fmt.Errorf("recording: insert: %w", err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("recording: commit: %w", err)
	}

	r.buf = r.buf[:0]

	return nil
}

// Close flushes remaining entries and closes the database handle.
func (r *Recorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}

	return r.db.Close()
}
