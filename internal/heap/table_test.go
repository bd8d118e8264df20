package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arlobase/bptreeidx/internal/bufferpool"
	"github.com/arlobase/bptreeidx/internal/heap"
	"github.com/arlobase/bptreeidx/internal/record"
	"github.com/arlobase/bptreeidx/internal/storage"
)

func testSchema() record.Schema {
	return record.Schema{Cols: []record.Column{
		{Name: "id", Type: record.ColInt32},
		{Name: "name", Type: record.ColText},
	}}
}

func newTestTable(t *testing.T) *heap.Table {
	t.Helper()
	dir := t.TempDir()
	fs := storage.LocalFileSet{Dir: dir, Base: "people"}
	sm := storage.NewStorageManager()
	pool := bufferpool.NewPool(sm, fs, 8, 1)
	return heap.NewTable("people", testSchema(), pool, 0)
}

func TestTable_InsertAndGet(t *testing.T) {
	tbl := newTestTable(t)

	id, err := tbl.Insert([]any{int32(1), "alice"})
	require.NoError(t, err)

	row, err := tbl.Get(id)
	require.NoError(t, err)
	require.Equal(t, []any{int32(1), "alice"}, row)
}

func TestTable_InsertManyRows_SpansMultiplePages(t *testing.T) {
	tbl := newTestTable(t)

	const n = 2000
	ids := make([]heap.TID, 0, n)
	for i := 0; i < n; i++ {
		id, err := tbl.Insert([]any{int32(i), "row"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	distinctPages := map[uint32]bool{}
	for _, id := range ids {
		distinctPages[id.PageID] = true
	}
	require.Greater(t, len(distinctPages), 1)

	row, err := tbl.Get(ids[n-1])
	require.NoError(t, err)
	require.Equal(t, int32(n-1), row[0])
}

func TestTable_CursorVisitsEveryRowInOrder(t *testing.T) {
	tbl := newTestTable(t)

	const n = 50
	for i := 0; i < n; i++ {
		_, err := tbl.Insert([]any{int32(i), "row"})
		require.NoError(t, err)
	}

	cur := tbl.Cursor()
	defer func() { _ = cur.Close() }()

	seen := 0
	for {
		id, err := cur.Next()
		if err == heap.ErrEndOfRelation {
			break
		}
		require.NoError(t, err)
		row, err := cur.Record(id)
		require.NoError(t, err)
		require.Equal(t, int32(seen), row[0])
		seen++
	}
	require.Equal(t, n, seen)
}

func TestTable_ClosedRejectsInsert(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Close())

	_, err := tbl.Insert([]any{int32(1), "x"})
	require.ErrorIs(t, err, heap.ErrTableClosed)
}
