// Package ledger keeps the append-only history of pair creation and
// closure. Writes are best-effort relative to live matching: they go
// through a buffered job channel into a retry worker and can never block
// or fail a match.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
)

const (
	jobBuffer    = 256
	writeRetries = 3
	retryDelay   = 500 * time.Millisecond
)

type jobOp int

const (
	opOpen jobOp = iota
	opClose
)

type job struct {
	op   jobOp
	a, b string
	at   time.Time
}

// recorder is the synchronous write half, split out so the worker can be
// tested without a database.
type recorder interface {
	open(j job) error
	close(j job) error
}

// Service is the asynchronous dialog ledger.
type Service struct {
	rec  recorder
	jobs chan job
	now  func() time.Time
}

// NewService builds a ledger writing to db.
func NewService(db *gorm.DB) *Service {
	return newService(&gormRecorder{db: db})
}

func newService(rec recorder) *Service {
	return &Service{
		rec:  rec,
		jobs: make(chan job, jobBuffer),
		now:  time.Now,
	}
}

// Prefix is the stable identifier of a user pair: lowest id first.
func Prefix(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// DialogID derives the full dialog identifier. Two users reconnecting
// share the Prefix and are told apart by the open timestamp.
func DialogID(a, b string, at time.Time) string {
	return fmt.Sprintf("%s:%d", Prefix(a, b), at.Unix())
}

// RecordOpen appends a dialog-opened record. Never blocks: when the
// buffer is full the record is dropped with a log line, since audit
// history must not back-pressure matching.
func (s *Service) RecordOpen(a, b string) {
	s.submit(job{op: opOpen, a: a, b: b, at: s.now()})
}

// RecordClose marks the open dialog between a and b as closed.
func (s *Service) RecordClose(a, b string) {
	s.submit(job{op: opClose, a: a, b: b, at: s.now()})
}

func (s *Service) submit(j job) {
	select {
	case s.jobs <- j:
	default:
		log.Printf("WARN: ledger buffer full, dropping record for %s", Prefix(j.a, j.b))
		metrics.RecordLedgerWrite(opName(j.op), false)
	}
}

// Run consumes the job channel until ctx is cancelled. Each job is
// retried a few times with a delay; a job that still fails is logged and
// abandoned.
func (s *Service) Run(ctx context.Context) {
	log.Println("Dialog ledger started")
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			s.process(ctx, j)
		}
	}
}

func (s *Service) process(ctx context.Context, j job) {
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}
		switch j.op {
		case opOpen:
			err = s.rec.open(j)
		case opClose:
			err = s.rec.close(j)
		}
		if err == nil {
			metrics.RecordLedgerWrite(opName(j.op), true)
			return
		}
	}
	log.Printf("ERROR: ledger write (%s) for %s failed permanently: %v", opName(j.op), Prefix(j.a, j.b), err)
	metrics.RecordLedgerWrite(opName(j.op), false)
}

func opName(op jobOp) string {
	if op == opOpen {
		return "open"
	}
	return "close"
}

// gormRecorder writes dialog rows through gorm.
type gormRecorder struct {
	db *gorm.DB
}

// open is idempotent per open prefix: replaying a match for a pair that
// already has an open dialog creates no duplicate row. This also lets
// the relational state backend and the ledger share the dialogs table.
func (r *gormRecorder) open(j job) error {
	lo, hi := j.a, j.b
	if hi < lo {
		lo, hi = hi, lo
	}
	var existing models.Dialog
	err := r.db.Where("participant1 = ? AND participant2 = ? AND status = ?",
		lo, hi, models.DialogStatusOpen).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	dialog := models.Dialog{
		DialogID:     DialogID(j.a, j.b, j.at),
		Participant1: lo,
		Participant2: hi,
		CreatedAt:    j.at,
		Status:       models.DialogStatusOpen,
	}
	return r.db.Create(&dialog).Error
}

// close transitions the pair's open dialog to Closed. Closing an
// already-closed (or never-recorded) dialog is a no-op.
func (r *gormRecorder) close(j job) error {
	lo, hi := j.a, j.b
	if hi < lo {
		lo, hi = hi, lo
	}
	return r.db.Model(&models.Dialog{}).
		Where("participant1 = ? AND participant2 = ? AND status = ?",
			lo, hi, models.DialogStatusOpen).
		Update("status", models.DialogStatusClosed).Error
}
