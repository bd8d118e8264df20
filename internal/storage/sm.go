package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSet addresses the segment files backing one logical paged file (a
// relation or an index): Base, Base.1, Base.2, ...
type FileSet interface {
	OpenSegment(segNo uint32) (*os.File, error)
	// Name identifies this FileSet for buffer-pool bookkeeping and logging.
	Name() string
}

var _ FileSet = (*LocalFileSet)(nil)

// LocalFileSet is a FileSet backed by a local directory and base file name.
type LocalFileSet struct {
	Dir  string
	Base string
}

func (lfs LocalFileSet) Name() string { return filepath.Join(lfs.Dir, lfs.Base) }

func (lfs LocalFileSet) OpenSegment(segNo uint32) (*os.File, error) {
	name := lfs.Base
	if segNo > 0 {
		name = fmt.Sprintf("%s.%d", lfs.Base, segNo)
	}
	path := filepath.Join(lfs.Dir, name)
	if err := os.MkdirAll(lfs.Dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
}

// StorageManager maps a logical pageID to a (segment, offset) pair and
// performs the raw reads/writes. It holds no per-FileSet state, so one
// StorageManager serves every FileSet in the process.
type StorageManager struct{}

func NewStorageManager() *StorageManager { return &StorageManager{} }

func (sm *StorageManager) pagesPerSegment() uint32 {
	return SegmentSize / PageSize
}

func (sm *StorageManager) locate(pageID uint32) (segNo uint32, offset int64) {
	pps := sm.pagesPerSegment()
	segNo = pageID / pps
	pageInSeg := pageID % pps
	offset = int64(pageInSeg) * PageSize
	return segNo, offset
}

// ReadPage reads exactly one page's worth of bytes into dst. A short or
// missing file is zero-filled, so a page that was never written reads back
// as a page of zeroes rather than failing.
func (sm *StorageManager) ReadPage(fs FileSet, pageID uint32, dst []byte) error {
	if len(dst) != PageSize {
		return ErrBadPageSize
	}
	segNo, off := sm.locate(pageID)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return fmt.Errorf("storage: open segment %d of %s: %w", segNo, fs.Name(), err)
	}
	defer closeFile(f)

	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("storage: read page %d: %w", pageID, err)
	}
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage writes exactly one page's worth of bytes from src to the
// location computed from pageID.
func (sm *StorageManager) WritePage(fs FileSet, pageID uint32, src []byte) error {
	if len(src) != PageSize {
		return ErrBadPageSize
	}
	segNo, off := sm.locate(pageID)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return fmt.Errorf("storage: open segment %d of %s: %w", segNo, fs.Name(), err)
	}
	defer closeFile(f)

	n, err := f.WriteAt(src, off)
	if err != nil {
		return fmt.Errorf("storage: write page %d: %w", pageID, err)
	}
	if n != PageSize {
		return fmt.Errorf("storage: write page %d: %w", pageID, io.ErrShortWrite)
	}
	return nil
}

// LoadPage reads pageID into memory as a Page. A page that reads back as
// all zeroes (never written) is initialized in place with pageID.
func (sm *StorageManager) LoadPage(fs FileSet, pageID uint32) (*Page, error) {
	buf := make([]byte, PageSize)
	if err := sm.ReadPage(fs, pageID, buf); err != nil {
		return nil, err
	}
	p := &Page{Buf: buf}
	if p.IsUninitialized() {
		p.init(pageID)
	}
	return p, nil
}

// SavePage writes p back to pageID's location.
func (sm *StorageManager) SavePage(fs FileSet, pageID uint32, p Page) error {
	if len(p.Buf) != PageSize {
		return ErrBadPageSize
	}
	return sm.WritePage(fs, pageID, p.Buf)
}

// CountPages returns the total number of pages currently persisted across
// every segment of fs, by summing segment file sizes up to the first empty
// (or newly created) segment. Page ids for a fresh
// FileSet therefore start at the value this returns.
func (sm *StorageManager) CountPages(fs FileSet) (uint32, error) {
	var total uint32
	for segNo := uint32(0); ; segNo++ {
		f, err := fs.OpenSegment(segNo)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return 0, err
		}
		info, statErr := f.Stat()
		_ = f.Close()
		if statErr != nil {
			return 0, statErr
		}
		if info.Size() <= 0 {
			break
		}
		total += uint32(info.Size() / int64(PageSize))
	}
	return total, nil
}

func closeFile(f *os.File) {
	_ = f.Close()
}
