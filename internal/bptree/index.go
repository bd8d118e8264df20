// Package bptree implements the disk-resident B+-tree secondary index:
// node codec (node.go), tree mutator (tree.go), scan engine (scan.go),
// metadata codec (metadata.go), and the index lifecycle below.
package bptree

import (
	"fmt"
	"log/slog"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/arlobase/bptreeidx/internal/bufferpool"
	"github.com/arlobase/bptreeidx/internal/bx"
	"github.com/arlobase/bptreeidx/internal/relscan"
	"github.com/arlobase/bptreeidx/internal/storage"
)

// Tree is the mutator + scan engine over a single index file: it knows
// only the current root page id and how to persist a new one when it
// changes, leaving every other piece of tree state on disk.
type Tree struct {
	bp            bufferpool.Manager
	rootPage      uint32
	onRootChanged func(newRoot uint32) error
}

func (t *Tree) RootPage() uint32 { return t.rootPage }

// outIndexName derives the on-disk index file base name from the indexed
// relation and the byte offset of its key column.
func outIndexName(relationName string, attrByteOffset uint32) string {
	return fmt.Sprintf("%s.%d", relationName, attrByteOffset)
}

// Index is the index lifecycle: open-or-create over a named blob file,
// metadata validation, bulk build, flush-on-close.
type Index struct {
	Name string // outIndexName(relationName, attrByteOffset)

	fs   storage.FileSet
	pool *bufferpool.Pool
	tree *Tree

	activeCursor *Cursor
	closed       atomic.Bool
}

// Open opens dir/outIndexName(relationName, attrByteOffset), validating its
// metadata against (relationName, attrByteOffset, keyType) if the file
// already exists, or creating it fresh and bulk-building from source if it
// does not. source is consulted only on fresh creation; with a nil source a
// missing index is created empty, with no bulk build.
func Open(
	dir, relationName string,
	attrByteOffset uint32,
	keyType KeyType,
	bufferPoolCapacity int,
	source *relscan.Scanner,
) (*Index, error) {
	if keyType != KeyTypeInt32 {
		return nil, ErrUnsupportedKeyType
	}

	name := outIndexName(relationName, attrByteOffset)
	fs := storage.LocalFileSet{Dir: dir, Base: name}
	sm := storage.NewStorageManager()

	existingPages, err := sm.CountPages(fs)
	if err != nil {
		return nil, fmt.Errorf("bptree: count existing pages: %w", err)
	}
	fresh := existingPages == 0

	seed := existingPages
	if seed == 0 {
		seed = 1 // page ids start at 1; page 0 is never allocated (Open Question 2).
	}
	pool := bufferpool.NewPool(sm, fs, bufferPoolCapacity, seed)

	idx := &Index{Name: name, fs: fs, pool: pool}

	if fresh {
		if err := idx.createFresh(relationName, attrByteOffset, keyType); err != nil {
			return nil, err
		}
		if source != nil {
			if err := idx.bulkBuild(source, attrByteOffset); err != nil {
				return nil, err
			}
		}
		slog.Debug("bptree: created index", "name", name)
		return idx, nil
	}

	if err := idx.openExisting(relationName, attrByteOffset, keyType); err != nil {
		return nil, err
	}
	slog.Debug("bptree: opened index", "name", name)
	return idx, nil
}

func (idx *Index) createFresh(relationName string, attrByteOffset uint32, keyType KeyType) error {
	metaID, metaPage, err := idx.pool.AllocPage()
	if err != nil {
		return err
	}
	if metaID != MetaPageID {
		_ = idx.pool.UnpinPage(metaPage, false)
		return fmt.Errorf("bptree: expected metadata page id %d, got %d", MetaPageID, metaID)
	}

	rootID, rootPage, err := idx.pool.AllocPage()
	if err != nil {
		_ = idx.pool.UnpinPage(metaPage, false)
		return err
	}
	root := initInner(rootPage, 1) // level=1: children are leaves.

	leafID, leafPage, err := idx.pool.AllocPage()
	if err != nil {
		_ = idx.pool.UnpinPage(rootPage, false)
		_ = idx.pool.UnpinPage(metaPage, false)
		return err
	}
	initLeaf(leafPage)
	root.SetChild(0, leafID)

	if err := idx.pool.UnpinPage(leafPage, true); err != nil {
		return err
	}
	if err := idx.pool.UnpinPage(rootPage, true); err != nil {
		return err
	}

	writeMeta(metaPage, meta{
		RelationName: relationName,
		AttrOffset:   attrByteOffset,
		KeyType:      keyType,
		RootPage:     rootID,
	})
	if err := idx.pool.UnpinPage(metaPage, true); err != nil {
		return err
	}

	idx.tree = &Tree{bp: idx.pool, rootPage: rootID, onRootChanged: idx.persistRoot}
	return nil
}

func (idx *Index) openExisting(relationName string, attrByteOffset uint32, keyType KeyType) error {
	metaPage, err := idx.pool.ReadPage(MetaPageID)
	if err != nil {
		return err
	}
	m := readMeta(metaPage)
	if uerr := idx.pool.UnpinPage(metaPage, false); uerr != nil {
		return uerr
	}

	if m.RelationName != relationName || m.AttrOffset != attrByteOffset || m.KeyType != keyType {
		return ErrBadIndexInfo
	}

	idx.tree = &Tree{bp: idx.pool, rootPage: m.RootPage, onRootChanged: idx.persistRoot}
	return nil
}

// persistRoot is Tree.onRootChanged: the two-write root-promotion sequence —
// new interior node already written by growRoot, then the metadata page
// updated here.
func (idx *Index) persistRoot(newRoot uint32) error {
	metaPage, err := idx.pool.ReadPage(MetaPageID)
	if err != nil {
		return err
	}
	setMetaRootPage(metaPage, newRoot)
	return idx.pool.UnpinPage(metaPage, true)
}

// bulkBuild enumerates every relation row, extracts the key at
// attrByteOffset, and inserts (key, rid). End of relation is an ordinary
// (TID{}, false, nil) from relscan, never an error.
func (idx *Index) bulkBuild(source *relscan.Scanner, attrByteOffset uint32) error {
	count := 0
	for {
		tid, ok, err := source.ScanNext()
		if err != nil {
			return fmt.Errorf("bptree: bulk build scan: %w", err)
		}
		if !ok {
			break
		}
		rec, err := source.CurrentRecord()
		if err != nil {
			return fmt.Errorf("bptree: bulk build record: %w", err)
		}
		if int(attrByteOffset)+4 > len(rec) {
			return fmt.Errorf("bptree: bulk build: record shorter than key offset+4")
		}
		key := bx.I32At(rec, int(attrByteOffset))
		if err := idx.tree.Insert(key, RID{Page: tid.PageID, Slot: tid.Slot}); err != nil {
			return fmt.Errorf("bptree: bulk build insert: %w", err)
		}
		count++
	}
	slog.Debug("bptree: bulk build complete", "rows", count)
	return nil
}

// RootPage returns the current root page id, mainly useful for tooling
// output; callers never need it to drive Insert/StartScan/Next.
func (idx *Index) RootPage() uint32 { return idx.tree.RootPage() }

// Insert adds (key, rid) to the index.
func (idx *Index) Insert(key int32, rid RID) error {
	return idx.tree.Insert(key, rid)
}

// StartScan activates a bounded range scan. Only one scan may be active at
// a time; call EndScan before starting another.
func (idx *Index) StartScan(low int32, lowOp Op, high int32, highOp Op) error {
	if idx.activeCursor != nil {
		return ErrScanActive
	}
	c, err := idx.tree.StartScan(low, lowOp, high, highOp)
	if err != nil {
		return err
	}
	idx.activeCursor = c
	return nil
}

// Next returns the next matching RID.
func (idx *Index) Next() (RID, error) {
	if idx.activeCursor == nil {
		return RID{}, ErrScanNotInitialized
	}
	return idx.activeCursor.Next()
}

// EndScan releases the active scan's pinned leaf.
func (idx *Index) EndScan() error {
	if idx.activeCursor == nil {
		return ErrScanNotInitialized
	}
	err := idx.activeCursor.EndScan()
	idx.activeCursor = nil
	return err
}

// Close ends any still-active scan, unpinning its leaf, and then flushes the
// file through the buffer pool. Order matters: unpin, then flush. A second
// Close is a no-op; the other methods do not check whether the index has
// been closed.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if idx.activeCursor != nil {
		err = multierr.Append(err, idx.activeCursor.EndScan())
		idx.activeCursor = nil
	}
	err = multierr.Append(err, idx.pool.Close())
	return err
}
