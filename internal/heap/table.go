// Package heap implements the relation file internal/bptree and
// internal/relscan read from: an unordered, append-only sequence of
// fixed-schema rows stored on slotted pages. There is no update or delete
// here; a relation is written once (or appended to) and then scanned.
package heap

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"

	"github.com/arlobase/bptreeidx/internal/bufferpool"
	"github.com/arlobase/bptreeidx/internal/record"
	"github.com/arlobase/bptreeidx/internal/storage"
)

var ErrTableClosed = errors.New("heap: table is closed")

// Table is an append-only relation of record.Schema-typed rows, backed by a
// bufferpool.Manager bound to one storage.FileSet.
type Table struct {
	Name   string
	Schema record.Schema

	bp        bufferpool.Manager
	pageCount uint32
	closed    atomic.Bool
}

// NewTable wraps bp (already bound to the relation's FileSet) as a Table.
// pageCount is the number of pages already persisted, as reported by
// storage.StorageManager.CountPages at open time.
func NewTable(name string, schema record.Schema, bp bufferpool.Manager, pageCount uint32) *Table {
	return &Table{Name: name, Schema: schema, bp: bp, pageCount: pageCount}
}

func (t *Table) ensureOpen() error {
	if t.closed.Load() {
		return ErrTableClosed
	}
	return nil
}

// Insert encodes values per t.Schema and appends the resulting row to the
// last page, allocating a new page when the last one has no room.
func (t *Table) Insert(values []any) (TID, error) {
	if err := t.ensureOpen(); err != nil {
		return TID{}, err
	}
	row, err := record.EncodeRow(t.Schema, values)
	if err != nil {
		return TID{}, fmt.Errorf("heap: encode row: %w", err)
	}

	var page *storage.Page
	var pageID uint32
	if t.pageCount == 0 {
		pageID, page, err = t.bp.AllocPage()
		if err != nil {
			return TID{}, err
		}
		t.pageCount = pageID + 1
	} else {
		pageID = t.pageCount - 1
		page, err = t.bp.ReadPage(pageID)
		if err != nil {
			return TID{}, err
		}
	}

	slot, err := page.InsertTuple(row)
	if errors.Is(err, storage.ErrNoSpace) {
		if uerr := t.bp.UnpinPage(page, false); uerr != nil {
			return TID{}, uerr
		}
		pageID, page, err = t.bp.AllocPage()
		if err != nil {
			return TID{}, err
		}
		t.pageCount = pageID + 1
		slot, err = page.InsertTuple(row)
	}
	if err != nil {
		_ = t.bp.UnpinPage(page, false)
		return TID{}, err
	}

	if err := t.bp.UnpinPage(page, true); err != nil {
		return TID{}, err
	}
	return TID{PageID: pageID, Slot: uint16(slot)}, nil
}

// Get returns the decoded row at id.
func (t *Table) Get(id TID) ([]any, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	page, err := t.bp.ReadPage(id.PageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = t.bp.UnpinPage(page, false) }()

	buf, err := page.ReadTuple(int(id.Slot))
	if err != nil {
		return nil, err
	}
	return record.DecodeRow(t.Schema, buf)
}

// Scan calls fn for every row in the relation, in (pageID, slot) order.
// Table never deletes and no slot flag is examined; a slot that ReadTuple
// rejects with storage.ErrBadSlot is skipped.
func (t *Table) Scan(fn func(id TID, row []byte) error) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	for pageID := uint32(0); pageID < t.pageCount; pageID++ {
		page, err := t.bp.ReadPage(pageID)
		if err != nil {
			return err
		}
		n := page.NumSlots()
		for slot := 0; slot < n; slot++ {
			buf, err := page.ReadTuple(slot)
			if errors.Is(err, storage.ErrBadSlot) {
				continue
			}
			if err != nil {
				_ = t.bp.UnpinPage(page, false)
				return err
			}
			if err := fn(TID{PageID: pageID, Slot: uint16(slot)}, buf); err != nil {
				_ = t.bp.UnpinPage(page, false)
				return err
			}
		}
		if err := t.bp.UnpinPage(page, false); err != nil {
			return err
		}
	}
	return nil
}

// ErrEndOfRelation is returned by Cursor.Next once every page has been
// visited. It is an ordinary sentinel here; internal/relscan turns it into
// an ok == false result from ScanNext, so it never crosses the index's
// public surface.
var ErrEndOfRelation = errors.New("heap: end of relation")

// Cursor is a pull-style, single-pass iterator over a Table, used by
// internal/relscan to drive an index's bulk build.
type Cursor struct {
	t       *Table
	pageID  uint32
	page    *storage.Page
	slot    int
	numSlot int
}

// Cursor opens a new pull-style iterator positioned before the first row.
func (t *Table) Cursor() *Cursor {
	return &Cursor{t: t, pageID: 0, slot: 0}
}

// Next advances to the next live row and returns its id. It returns
// ErrEndOfRelation once the relation is exhausted.
func (c *Cursor) Next() (TID, error) {
	if err := c.t.ensureOpen(); err != nil {
		return TID{}, err
	}
	for {
		if c.page == nil {
			if c.pageID >= c.t.pageCount {
				return TID{}, ErrEndOfRelation
			}
			page, err := c.t.bp.ReadPage(c.pageID)
			if err != nil {
				return TID{}, err
			}
			c.page = page
			c.numSlot = page.NumSlots()
			c.slot = 0
		}

		for c.slot < c.numSlot {
			slot := c.slot
			c.slot++
			if _, err := c.page.ReadTuple(slot); errors.Is(err, storage.ErrBadSlot) {
				continue
			}
			return TID{PageID: c.pageID, Slot: uint16(slot)}, nil
		}

		if err := c.t.bp.UnpinPage(c.page, false); err != nil {
			return TID{}, err
		}
		c.page = nil
		c.pageID++
	}
}

// Record returns the decoded row Next() last positioned on.
func (c *Cursor) Record(id TID) ([]any, error) {
	return c.t.Get(id)
}

// RawRecord returns the raw encoded row bytes Next() last positioned on,
// without decoding, for callers (like a B+-tree key extractor) that only
// need a fixed byte offset out of it.
func (c *Cursor) RawRecord(id TID) ([]byte, error) {
	page, err := c.t.bp.ReadPage(id.PageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.t.bp.UnpinPage(page, false) }()
	return page.ReadTuple(int(id.Slot))
}

// Close releases the page the cursor is currently holding, if any.
func (c *Cursor) Close() error {
	if c.page == nil {
		return nil
	}
	err := c.t.bp.UnpinPage(c.page, false)
	c.page = nil
	return err
}

// Flush writes every dirty page of the relation back to disk.
func (t *Table) Flush() error {
	return t.bp.FlushFile()
}

// Close flushes and marks the table unusable for further operations.
func (t *Table) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.bp.Close()
}
