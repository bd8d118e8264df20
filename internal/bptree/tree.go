package bptree

import (
	"log/slog"

	"github.com/arlobase/bptreeidx/internal/bufferpool"
)

// splitRecord is a sum type: nil means no split happened, non-nil carries
// the separator key promoted to the parent and the new right sibling's
// page id. Modeling it as a nilable pointer, rather than overloading
// InvalidPage through a mutable out-parameter, keeps "did a split happen"
// and "what page did it produce" from being conflated.
type splitRecord struct {
	Key     int32
	NewPage uint32
}

// Insert adds (key, rid) to the tree rooted at t.rootPage. Duplicates are
// permitted and preserve insertion order via the findSlot "equality goes
// right" rule.
func (t *Tree) Insert(key int32, rid RID) error {
	if key == EmptyKey {
		return ErrReservedKey
	}

	split, err := t.insertInner(t.rootPage, key, rid)
	if err != nil {
		return err
	}
	if split == nil {
		return nil
	}
	return t.growRoot(split)
}

// growRoot handles a split bubbling out of the root: it becomes a brand
// new interior root one level up.
func (t *Tree) growRoot(split *splitRecord) error {
	newRootID, newRootPage, err := t.bp.AllocPage()
	if err != nil {
		return err
	}
	newRoot := initInner(newRootPage, 0)
	newRoot.SetChild(0, t.rootPage)
	newRoot.SetKey(0, split.Key)
	newRoot.SetChild(1, split.NewPage)
	if err := t.bp.UnpinPage(newRootPage, true); err != nil {
		return err
	}

	slog.Debug("bptree: root grew", "oldRoot", t.rootPage, "newRoot", newRootID, "promotedKey", split.Key)
	t.rootPage = newRootID
	return t.onRootChanged(newRootID)
}

// insertInner recurses one interior level. Every exit path unpins the page
// it pinned.
func (t *Tree) insertInner(pageID uint32, key int32, rid RID) (*splitRecord, error) {
	page, err := t.bp.ReadPage(pageID)
	if err != nil {
		return nil, err
	}
	node := InnerNode{Page: page}
	dirty := false
	defer func() {
		if uerr := t.bp.UnpinPage(page, dirty); uerr != nil {
			slog.Warn("bptree: unpin failed", "pageID", pageID, "err", uerr)
		}
	}()

	i := node.findChildIndex(key)
	childID := node.Child(i)

	var childSplit *splitRecord
	if node.Level() == 1 {
		childSplit, err = t.insertLeaf(childID, key, rid)
	} else {
		childSplit, err = t.insertInner(childID, key, rid)
	}
	if err != nil {
		return nil, err
	}
	if childSplit == nil {
		return nil, nil
	}

	dirty = true
	return installInner(t.bp, node, childSplit.Key, childSplit.NewPage)
}

// installInner inserts (key, child) into node if it has room, or splits
// the node first when it's full.
func installInner(bp bufferpool.Manager, node InnerNode, key int32, child uint32) (*splitRecord, error) {
	if !node.IsFull() {
		insertIntoInnerNonFull(node, key, child)
		return nil, nil
	}
	return splitInner(bp, node, key, child)
}

func insertIntoInnerNonFull(node InnerNode, key int32, child uint32) {
	i := node.findChildIndex(key)
	if node.Key(i) == EmptyKey {
		node.SetKey(i, key)
		node.SetChild(i+1, child)
		return
	}
	for j := InnerCap - 1; j > i; j-- {
		node.SetKey(j, node.Key(j-1))
	}
	for j := InnerCap; j > i+1; j-- {
		node.SetChild(j, node.Child(j-1))
	}
	node.SetKey(i, key)
	node.SetChild(i+1, child)
}

// splitInner splits a full interior node in half, promoting its median
// key to the caller, and routes the incoming (key, child) into whichever
// half it belongs.
func splitInner(bp bufferpool.Manager, l InnerNode, key int32, child uint32) (*splitRecord, error) {
	rPageID, rPage, err := bp.AllocPage()
	if err != nil {
		return nil, err
	}
	r := initInner(rPage, l.Level())

	m := InnerCap / 2
	promoted := l.Key(m)

	j := 0
	for i := m + 1; i < InnerCap; i++ {
		r.SetKey(j, l.Key(i))
		l.SetKey(i, EmptyKey)
		j++
	}
	l.SetKey(m, EmptyKey)

	j = 0
	for i := m + 1; i <= InnerCap; i++ {
		r.SetChild(j, l.Child(i))
		l.SetChild(i, InvalidPage)
		j++
	}

	if key < r.Key(0) || r.Key(0) == EmptyKey {
		insertIntoInnerNonFull(l, key, child)
	} else {
		insertIntoInnerNonFull(r, key, child)
	}

	if err := bp.UnpinPage(rPage, true); err != nil {
		return nil, err
	}
	slog.Debug("bptree: interior split", "left", l.PageID(), "right", rPageID, "promotedKey", promoted)
	return &splitRecord{Key: promoted, NewPage: rPageID}, nil
}

// insertLeaf inserts (key, rid) into pageID's leaf, or splits it first
// when it's full.
func (t *Tree) insertLeaf(pageID uint32, key int32, rid RID) (*splitRecord, error) {
	page, err := t.bp.ReadPage(pageID)
	if err != nil {
		return nil, err
	}
	leaf := LeafNode{Page: page}
	dirty := true
	defer func() {
		if uerr := t.bp.UnpinPage(page, dirty); uerr != nil {
			slog.Warn("bptree: unpin failed", "pageID", pageID, "err", uerr)
		}
	}()

	if !leaf.IsFull() {
		insertIntoLeafNonFull(leaf, key, rid)
		return nil, nil
	}
	return t.splitLeaf(leaf, key, rid)
}

func insertIntoLeafNonFull(l LeafNode, key int32, rid RID) {
	i := l.findInsertSlot(key)
	for j := LeafCap - 1; j > i; j-- {
		l.SetKey(j, l.Key(j-1))
		l.SetRID(j, l.RID(j-1))
	}
	l.SetKey(i, key)
	l.SetRID(i, rid)
}

// splitLeaf splits a full leaf in half, links the new right sibling into
// the chain, and routes the incoming (key, rid) into whichever half it
// belongs.
func (t *Tree) splitLeaf(l LeafNode, key int32, rid RID) (*splitRecord, error) {
	rPageID, rPage, err := t.bp.AllocPage()
	if err != nil {
		return nil, err
	}
	r := initLeaf(rPage)

	mid := LeafCap / 2
	j := 0
	for i := mid; i < LeafCap; i++ {
		r.SetKey(j, l.Key(i))
		r.SetRID(j, l.RID(i))
		l.SetKey(i, EmptyKey)
		j++
	}

	r.SetRightSibling(l.RightSibling())
	l.SetRightSibling(r.PageID())

	if key < r.Key(0) {
		insertIntoLeafNonFull(l, key, rid)
	} else {
		insertIntoLeafNonFull(r, key, rid)
	}

	if err := t.bp.UnpinPage(rPage, true); err != nil {
		return nil, err
	}
	slog.Debug("bptree: leaf split", "left", l.PageID(), "right", rPageID, "separator", r.Key(0))
	return &splitRecord{Key: r.Key(0), NewPage: rPageID}, nil
}
