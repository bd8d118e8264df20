package bptree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arlobase/bptreeidx/internal/bptree"
	"github.com/arlobase/bptreeidx/internal/bufferpool"
	"github.com/arlobase/bptreeidx/internal/heap"
	"github.com/arlobase/bptreeidx/internal/record"
	"github.com/arlobase/bptreeidx/internal/relscan"
	"github.com/arlobase/bptreeidx/internal/storage"
)

func openFreshIndex(t *testing.T, dir, relation string, offset uint32) *bptree.Index {
	t.Helper()
	idx, err := bptree.Open(dir, relation, offset, bptree.KeyTypeInt32, 32, nil)
	require.NoError(t, err)
	return idx
}

func TestIndex_InsertThenScanReturnsInOrder(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders", 0)
	defer func() { _ = idx.Close() }()

	keys := []int32{50, 10, 40, 20, 30}
	for i, k := range keys {
		require.NoError(t, idx.Insert(k, bptree.RID{Page: uint32(i), Slot: 0}))
	}

	require.NoError(t, idx.StartScan(0, bptree.GTE, 100, bptree.LTE))
	var pages []uint32
	for {
		rid, err := idx.Next()
		if err == bptree.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		pages = append(pages, rid.Page)
	}
	require.NoError(t, idx.EndScan())
	// keys [50,10,40,20,30] at pages [0,1,2,3,4]; sorted by key: 10,20,30,40,50
	require.Equal(t, []uint32{1, 3, 4, 2, 0}, pages)
}

func TestIndex_ScanRangeFiltersByBounds(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders2", 0)
	defer func() { _ = idx.Close() }()

	for i := int32(0); i < 10; i++ {
		require.NoError(t, idx.Insert(i*10, bptree.RID{Page: uint32(i), Slot: 0}))
	}

	require.NoError(t, idx.StartScan(20, bptree.GTE, 50, bptree.LT))
	var pages []uint32
	for {
		rid, err := idx.Next()
		if err == bptree.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		pages = append(pages, rid.Page)
	}
	require.NoError(t, idx.EndScan())
	// keys 20, 30, 40 -> rids for i=2,3,4
	require.Equal(t, []uint32{2, 3, 4}, pages)
}

func TestIndex_ScanNoMatchingKeyErrors(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders3", 0)
	defer func() { _ = idx.Close() }()

	require.NoError(t, idx.Insert(5, bptree.RID{Page: 1}))

	err := idx.StartScan(100, bptree.GTE, 200, bptree.LTE)
	require.ErrorIs(t, err, bptree.ErrNoSuchKeyFound)
}

func TestIndex_StartScanTwiceWithoutEndScanIsError(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders4", 0)
	defer func() { _ = idx.Close() }()

	require.NoError(t, idx.Insert(1, bptree.RID{Page: 1}))
	require.NoError(t, idx.StartScan(0, bptree.GTE, 10, bptree.LTE))
	err := idx.StartScan(0, bptree.GTE, 10, bptree.LTE)
	require.ErrorIs(t, err, bptree.ErrScanActive)
	require.NoError(t, idx.EndScan())
}

func TestIndex_ForcesLeafSplitAndStillScansInOrder(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders5", 0)
	defer func() { _ = idx.Close() }()

	const n = bptree.LeafCap + 50
	for i := int32(0); i < n; i++ {
		require.NoError(t, idx.Insert(i, bptree.RID{Page: uint32(i)}))
	}

	require.NoError(t, idx.StartScan(0, bptree.GTE, n, bptree.LT))
	count := 0
	for {
		rid, err := idx.Next()
		if err == bptree.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		require.Equal(t, uint32(count), rid.Page)
		count++
	}
	require.NoError(t, idx.EndScan())
	require.Equal(t, int(n), count)
}

func TestIndex_DuplicateKeysAcrossLeafSplitPreserveInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders5b", 0)
	defer func() { _ = idx.Close() }()

	// every insert shares the same key, so a leaf split must route
	// duplicates straddling the split boundary using the "equality goes
	// right" rule rather than any key ordering.
	const n = bptree.LeafCap + 50
	const key = int32(7)
	for i := int32(0); i < n; i++ {
		require.NoError(t, idx.Insert(key, bptree.RID{Page: uint32(i)}))
	}

	require.NoError(t, idx.StartScan(key, bptree.GTE, key, bptree.LTE))
	var pages []uint32
	for {
		rid, err := idx.Next()
		if err == bptree.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		pages = append(pages, rid.Page)
	}
	require.NoError(t, idx.EndScan())

	require.Len(t, pages, int(n))
	for i, p := range pages {
		require.Equal(t, uint32(i), p)
	}
}

func TestIndex_ReopenValidatesMetadata(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders6", 8)
	require.NoError(t, idx.Insert(1, bptree.RID{Page: 1}))
	require.NoError(t, idx.Close())

	reopened, err := bptree.Open(dir, "orders6", 8, bptree.KeyTypeInt32, 32, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	require.NoError(t, reopened.StartScan(0, bptree.GTE, 10, bptree.LTE))
	rid, err := reopened.Next()
	require.NoError(t, err)
	require.Equal(t, uint32(1), rid.Page)
	require.NoError(t, reopened.EndScan())

	_, err = bptree.Open(dir, "wrong-relation", 8, bptree.KeyTypeInt32, 32, nil)
	require.ErrorIs(t, err, bptree.ErrBadIndexInfo)
}

func TestIndex_InsertRejectsReservedKey(t *testing.T) {
	dir := t.TempDir()
	idx := openFreshIndex(t, dir, "orders7", 0)
	defer func() { _ = idx.Close() }()

	err := idx.Insert(bptree.EmptyKey, bptree.RID{Page: 1})
	require.ErrorIs(t, err, bptree.ErrReservedKey)
}

func TestIndex_BulkBuildFromRelationScanner(t *testing.T) {
	dir := t.TempDir()
	relFS := storage.LocalFileSet{Dir: dir, Base: "items"}
	sm := storage.NewStorageManager()
	relPool := bufferpool.NewPool(sm, relFS, 16, 1)
	schema := record.Schema{Cols: []record.Column{
		{Name: "id", Type: record.ColInt32},
	}}
	tbl := heap.NewTable("items", schema, relPool, 0)

	const n = 25
	for i := int32(0); i < n; i++ {
		_, err := tbl.Insert([]any{i})
		require.NoError(t, err)
	}
	require.NoError(t, tbl.Flush())

	scanner := relscan.New(tbl)
	defer func() { _ = scanner.Close() }()

	idx, err := bptree.Open(dir, "items", 1, bptree.KeyTypeInt32, 16, scanner)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	require.NoError(t, idx.StartScan(0, bptree.GTE, n, bptree.LT))
	count := 0
	for {
		_, err := idx.Next()
		if err == bptree.ErrIndexScanCompleted {
			break
		}
		require.NoError(t, err)
		count++
	}
	require.NoError(t, idx.EndScan())
	require.Equal(t, n, count)
}
