package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arlobase/bptreeidx/internal/storage"
)

func newPage(id uint32) *storage.Page {
	buf := make([]byte, storage.PageSize)
	p := storage.NewPage(buf, id)
	return &p
}

func TestInitLeaf_AllSlotsEmpty(t *testing.T) {
	p := newPage(5)
	l := initLeaf(p)
	require.Equal(t, uint32(InvalidPage), l.RightSibling())
	for i := 0; i < LeafCap; i++ {
		require.Equal(t, EmptyKey, l.Key(i))
	}
	require.False(t, l.IsFull())
}

func TestInitInner_AllSlotsEmpty(t *testing.T) {
	p := newPage(6)
	n := initInner(p, 1)
	require.Equal(t, uint32(1), n.Level())
	for i := 0; i < InnerCap; i++ {
		require.Equal(t, EmptyKey, n.Key(i))
	}
	for i := 0; i <= InnerCap; i++ {
		require.Equal(t, uint32(InvalidPage), n.Child(i))
	}
}

func TestLeaf_PageIDSurvivesContentWrites(t *testing.T) {
	p := newPage(42)
	l := initLeaf(p)
	l.SetKey(0, 7)
	l.SetRID(0, RID{Page: 1, Slot: 2})
	require.Equal(t, uint32(42), l.PageID())
	require.Equal(t, uint32(42), p.PageID())
}

func TestFindSlot_EqualityGoesRight(t *testing.T) {
	keys := []int32{1, 3, 3, EmptyKey, EmptyKey}
	get := func(i int) int32 { return keys[i] }

	require.Equal(t, 0, findSlot(get, 5, 0))
	require.Equal(t, 1, findSlot(get, 5, 1))
	require.Equal(t, 1, findSlot(get, 5, 2))
	require.Equal(t, 3, findSlot(get, 5, 3)) // equality goes right: lands past both 3s
	require.Equal(t, 3, findSlot(get, 5, 4))
}

func TestInsertIntoLeafNonFull_KeepsOrder(t *testing.T) {
	p := newPage(1)
	l := initLeaf(p)
	insertIntoLeafNonFull(l, 5, RID{Page: 1})
	insertIntoLeafNonFull(l, 3, RID{Page: 2})
	insertIntoLeafNonFull(l, 7, RID{Page: 3})
	insertIntoLeafNonFull(l, 5, RID{Page: 4}) // duplicate: goes right of the existing 5

	require.Equal(t, []int32{3, 5, 5, 7}, []int32{l.Key(0), l.Key(1), l.Key(2), l.Key(3)})
	// the duplicate insert lands right of the earlier 5 (equality goes
	// right), so the two 5s keep their insertion order.
	require.Equal(t, uint32(1), l.RID(1).Page)
	require.Equal(t, uint32(4), l.RID(2).Page)
}

// fakePool is a minimal bufferpool.Manager backed by an in-memory map, used
// to unit-test split logic without a real storage.FileSet.
type fakePool struct {
	pages  map[uint32]*storage.Page
	nextID uint32
}

func newFakePool(firstID uint32) *fakePool {
	return &fakePool{pages: map[uint32]*storage.Page{}, nextID: firstID}
}

func (f *fakePool) AllocPage() (uint32, *storage.Page, error) {
	id := f.nextID
	f.nextID++
	p := newPage(id)
	f.pages[id] = p
	return id, p, nil
}
func (f *fakePool) ReadPage(id uint32) (*storage.Page, error) { return f.pages[id], nil }
func (f *fakePool) UnpinPage(*storage.Page, bool) error       { return nil }
func (f *fakePool) FlushFile() error                          { return nil }
func (f *fakePool) Close() error                              { return nil }

func TestSplitInner_PromotesMiddleKey(t *testing.T) {
	bp := newFakePool(10)
	_, lp, _ := bp.AllocPage()
	l := initInner(lp, 1)
	for i := 0; i < InnerCap; i++ {
		l.SetKey(i, int32(i*10))
		l.SetChild(i, uint32(100+i))
	}
	l.SetChild(InnerCap, uint32(100+InnerCap))

	split, err := splitInner(bp, l, int32(InnerCap*10+5), uint32(9999))
	require.NoError(t, err)
	require.NotNil(t, split)

	m := InnerCap / 2
	require.Equal(t, int32(m*10), split.Key)

	require.Equal(t, EmptyKey, l.Key(m))
	r, ok := bp.pages[split.NewPage]
	require.True(t, ok)
	right := InnerNode{Page: r}
	require.Equal(t, int32((m+1)*10), right.Key(0))
	require.Equal(t, l.Level(), right.Level())
}

func TestSplitLeaf_LinksSiblingAndRoutesIncoming(t *testing.T) {
	bp := newFakePool(20)
	_, lp, _ := bp.AllocPage()
	l := initLeaf(lp)
	for i := 0; i < LeafCap; i++ {
		insertIntoLeafNonFull(l, int32(i), RID{Page: uint32(i)})
	}
	require.True(t, l.IsFull())

	tr := &Tree{bp: bp}
	split, err := tr.splitLeaf(l, int32(LeafCap+100), RID{Page: 777})
	require.NoError(t, err)
	require.NotNil(t, split)
	require.Equal(t, l.RightSibling(), split.NewPage)

	rightPage, ok := bp.pages[split.NewPage]
	require.True(t, ok)
	right := LeafNode{Page: rightPage}
	// findInsertSlot lands just after an equal key, so the key itself is one slot left.
	require.Equal(t, int32(LeafCap+100), right.Key(right.findInsertSlot(int32(LeafCap+100))-1))
}

func TestGrowRoot_BuildsNewInteriorRootAndCallsBack(t *testing.T) {
	bp := newFakePool(30)
	oldRootID, oldRootPage, _ := bp.AllocPage()
	_ = initLeaf(oldRootPage) // old root's own contents don't matter to growRoot

	var callbackRoot uint32
	callbackCalled := false
	tr := &Tree{
		bp:       bp,
		rootPage: oldRootID,
		onRootChanged: func(newRoot uint32) error {
			callbackCalled = true
			callbackRoot = newRoot
			return nil
		},
	}

	split := &splitRecord{Key: 42, NewPage: 9999}
	err := tr.growRoot(split)
	require.NoError(t, err)

	require.True(t, callbackCalled)
	require.Equal(t, tr.rootPage, callbackRoot)
	require.NotEqual(t, oldRootID, tr.rootPage)

	newRootPage, ok := bp.pages[tr.rootPage]
	require.True(t, ok)
	newRoot := InnerNode{Page: newRootPage}
	require.Equal(t, uint32(0), newRoot.Level())
	require.Equal(t, oldRootID, newRoot.Child(0))
	require.Equal(t, int32(42), newRoot.Key(0))
	require.Equal(t, uint32(9999), newRoot.Child(1))
}
