// Package bufferpool implements a fixed-size, CLOCK-replaced buffer manager
// bound to a single paged file (one relation, or one B+-tree index file).
// It realizes the buffer manager contract used throughout internal/bptree
// and internal/relscan: alloc_page / read_page / unpin_page / flush_file.
package bufferpool

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/arlobase/bptreeidx/internal/storage"
	"github.com/arlobase/bptreeidx/pkg/clockx"
)

var logPrefix = "bufferpool: "

var (
	// ErrNoFreeFrame is returned when every frame is pinned and none can
	// be evicted to satisfy a new AllocPage/ReadPage request.
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

	// ErrPagePinned is returned by UnpinPage when the pin count is already
	// zero, signalling a caller bug (double unpin).
	ErrPagePinned = errors.New("bufferpool: page is not pinned")
)

const DefaultCapacity = 128

// Manager is the per-file buffer manager handle consumed by internal/bptree
// and internal/heap (and, through heap, internal/relscan). It mirrors the external buffer-manager contract:
// alloc a new page, read an existing one, unpin with a dirty flag, and
// flush every dirty frame belonging to this file.
type Manager interface {
	AllocPage() (pageID uint32, page *storage.Page, err error)
	ReadPage(pageID uint32) (*storage.Page, error)
	UnpinPage(page *storage.Page, dirty bool) error
	FlushFile() error
	Close() error
}

// Frame holds one resident page and its pin/dirty bookkeeping.
type Frame struct {
	PageID uint32
	Page   *storage.Page
	Dirty  bool
	Pin    int32
}

var _ Manager = (*Pool)(nil)

// Pool is a fixed-size buffer pool bound to one storage.FileSet, evicting
// via CLOCK (second-chance) replacement.
type Pool struct {
	sm *storage.StorageManager
	fs storage.FileSet

	mu        sync.Mutex
	frames    []*Frame // fixed-size, nil == free slot
	pageTable map[uint32]int
	clock     *clockx.Clock
	capacity  int

	nextPageID uint32
}

// NewPool opens a buffer pool over fs with the given frame capacity
// (DefaultCapacity if capacity <= 0). existingPages seeds page-id
// allocation: AllocPage hands out existingPages, existingPages+1, ...
func NewPool(sm *storage.StorageManager, fs storage.FileSet, capacity int, existingPages uint32) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		sm:         sm,
		fs:         fs,
		frames:     make([]*Frame, capacity),
		pageTable:  make(map[uint32]int),
		clock:      clockx.New(capacity),
		capacity:   capacity,
		nextPageID: existingPages,
	}
}

// ReadPage returns pageID, pinned, loading it from disk on first touch.
func (p *Pool) ReadPage(pageID uint32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		f := p.frames[idx]
		f.Pin++
		p.clock.Touch(idx)
		p.clock.SetEvictable(idx, false)
		slog.Debug(logPrefix+"hit", "pageID", pageID, "pin", f.Pin)
		return f.Page, nil
	}

	page, err := p.sm.LoadPage(p.fs, pageID)
	if err != nil {
		return nil, err
	}
	idx, err := p.placeLocked(pageID, page)
	if err != nil {
		return nil, err
	}
	slog.Debug(logPrefix+"fault", "pageID", pageID, "frame", idx)
	return page, nil
}

// AllocPage hands out a fresh page id never before seen by this pool and
// pins a zero-initialized page for it.
func (p *Pool) AllocPage() (uint32, *storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pageID := p.nextPageID
	p.nextPageID++

	buf := make([]byte, storage.PageSize)
	page := storage.NewPage(buf, pageID)
	idx, err := p.placeLocked(pageID, &page)
	if err != nil {
		return 0, nil, err
	}
	slog.Debug(logPrefix+"alloc", "pageID", pageID, "frame", idx)
	return pageID, &page, nil
}

// placeLocked installs (pageID, page) into a free frame or, failing that,
// an evicted one. Caller holds p.mu. The new frame is pinned (Pin=1).
func (p *Pool) placeLocked(pageID uint32, page *storage.Page) (int, error) {
	for i, f := range p.frames {
		if f == nil {
			p.frames[i] = &Frame{PageID: pageID, Page: page, Pin: 1}
			p.pageTable[pageID] = i
			p.clock.Touch(i)
			p.clock.SetEvictable(i, false)
			return i, nil
		}
	}

	victimIdx, ok := p.clock.Evict()
	if !ok {
		return -1, ErrNoFreeFrame
	}
	victim := p.frames[victimIdx]
	if victim.Dirty {
		if err := p.sm.SavePage(p.fs, victim.PageID, *victim.Page); err != nil {
			return -1, err
		}
	}
	delete(p.pageTable, victim.PageID)

	victim.PageID = pageID
	victim.Page = page
	victim.Dirty = false
	victim.Pin = 1
	p.pageTable[pageID] = victimIdx
	p.clock.Touch(victimIdx)
	p.clock.SetEvictable(victimIdx, false)
	return victimIdx, nil
}

// UnpinPage decreases page's pin count and marks it dirty if requested.
// A frame reaching pin count zero becomes eligible for CLOCK eviction.
func (p *Pool) UnpinPage(page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	pageID := page.PageID()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		slog.Debug(logPrefix+"unpin ignored, not resident", "pageID", pageID)
		return nil
	}
	f := p.frames[idx]
	if f.Pin == 0 {
		return ErrPagePinned
	}
	if dirty {
		f.Dirty = true
	}
	f.Pin--
	if f.Pin == 0 {
		p.clock.SetEvictable(idx, true)
	}
	slog.Debug(logPrefix+"unpin", "pageID", pageID, "dirty", f.Dirty, "pin", f.Pin)
	return nil
}

// FlushFile writes every dirty resident frame back to disk, concurrently,
// bounded by a worker count equal to the pool capacity.
func (p *Pool) FlushFile() error {
	p.mu.Lock()
	dirty := make([]*Frame, 0, len(p.frames))
	for _, f := range p.frames {
		if f != nil && f.Dirty {
			dirty = append(dirty, f)
		}
	}
	p.mu.Unlock()

	if len(dirty) == 0 {
		return nil
	}

	slog.Debug(logPrefix+"flush starting", "dirtyFrames", len(dirty))
	wp := pool.New().WithErrors().WithMaxGoroutines(p.capacity)
	for _, f := range dirty {
		f := f
		wp.Go(func() error {
			return p.sm.SavePage(p.fs, f.PageID, *f.Page)
		})
	}
	if err := wp.Wait(); err != nil {
		return err
	}

	p.mu.Lock()
	for _, f := range dirty {
		f.Dirty = false
	}
	p.mu.Unlock()
	slog.Debug(logPrefix + "flush completed")
	return nil
}

// Close flushes the file. The pool holds no other closeable resources:
// segment file handles are opened and closed per operation by
// StorageManager.
func (p *Pool) Close() error {
	return p.FlushFile()
}
