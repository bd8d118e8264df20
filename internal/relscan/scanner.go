// Package relscan wraps a relation (internal/heap.Table) with the
// pull-style scan contract internal/bptree's bulk-build step drives:
// ScanNext advances and returns the next row id, CurrentRecord returns its
// raw bytes. End of relation is reported as (TID{}, false, nil), never as
// an error — mirroring the original design, where end-of-file was an
// internal signal the bulk-build loop caught and never let escape.
package relscan

import (
	"errors"

	"go.uber.org/atomic"

	"github.com/arlobase/bptreeidx/internal/heap"
)

// ErrNotPositioned is returned by CurrentRecord before the first successful
// ScanNext, or after the relation has been exhausted.
var ErrNotPositioned = errors.New("relscan: scanner is not positioned on a row")

// Scanner is a one-shot, forward-only scan over a relation.
type Scanner struct {
	cur    *heap.Cursor
	curTID heap.TID
	have   bool
	done   atomic.Bool
}

func New(t *heap.Table) *Scanner {
	return &Scanner{cur: t.Cursor()}
}

// ScanNext advances to the next row. ok is false once the relation is
// exhausted; err is non-nil only for genuine I/O failures.
func (s *Scanner) ScanNext() (id heap.TID, ok bool, err error) {
	if s.done.Load() {
		return heap.TID{}, false, nil
	}
	tid, err := s.cur.Next()
	if err == heap.ErrEndOfRelation {
		s.done.Store(true)
		s.have = false
		return heap.TID{}, false, nil
	}
	if err != nil {
		return heap.TID{}, false, err
	}
	s.curTID = tid
	s.have = true
	return tid, true, nil
}

// CurrentRecord returns the raw encoded bytes of the row ScanNext last
// positioned on.
func (s *Scanner) CurrentRecord() ([]byte, error) {
	if !s.have {
		return nil, ErrNotPositioned
	}
	return s.cur.RawRecord(s.curTID)
}

// Close releases any page the underlying cursor still holds.
func (s *Scanner) Close() error {
	return s.cur.Close()
}
