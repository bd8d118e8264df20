package bptree

import (
	"math"

	"github.com/arlobase/bptreeidx/internal/bx"
	"github.com/arlobase/bptreeidx/internal/storage"
)

// EMPTY_KEY and INVALID_PAGE in spec vocabulary (see OPEN QUESTION DECISIONS
// 2 and 4 in SPEC_FULL.md): EmptyKey is the sentinel marking an unused key
// slot, chosen as the maximum representable int32; InvalidPage is the
// reserved page-id sentinel, fixed at 0 (page ids are allocated starting
// at 1, so 0 never collides with a real page).
const (
	EmptyKey    int32  = math.MaxInt32
	InvalidPage uint32 = 0
)

// Node content lives after the generic page header (storage.HeaderSize),
// so a B+-tree page and a heap.Table's slotted page can share the same
// bufferpool.Pool / storage.Page type without the codecs stepping on each
// other's page-id bytes.
const nodeBase = storage.HeaderSize

// ridSize is the encoded width of one RID: PageID(4) + Slot(2).
const ridSize = 6

// LeafCap and InnerCap are derived once from PageSize so that a leaf or
// interior node exactly fills a page.
const (
	leafHeaderSize = 4 // right_sibling uint32
	LeafCap        = (usableConst - leafHeaderSize) / (4 + ridSize)

	innerHeaderSize = 4 // level uint32
	// one key(4) + one child(4) per slot, plus one extra trailing child.
	InnerCap = (usableConst - innerHeaderSize - 4) / 8
)

// usableConst is the content area's usable byte count, as a compile-time
// constant so LeafCap/InnerCap can be computed at compile time.
const usableConst = storage.PageSize - nodeBase

// RID is an opaque record identifier: a page id and slot id in the
// external relation file.
type RID struct {
	Page uint32
	Slot uint16
}

// LeafNode overlays the leaf layout on a page's content area:
//
//	[0:4)                          right_sibling (uint32 page id)
//	[4:4+4*LeafCap)                keys (int32, EmptyKey-padded suffix)
//	[4+4*LeafCap:...)              rids (RID, ridSize bytes each)
type LeafNode struct {
	Page *storage.Page
}

func content(p *storage.Page) []byte { return p.Buf[nodeBase:] }

func initLeaf(p *storage.Page) LeafNode {
	c := content(p)
	for i := range c {
		c[i] = 0
	}
	l := LeafNode{Page: p}
	l.SetRightSibling(InvalidPage)
	for i := 0; i < LeafCap; i++ {
		l.SetKey(i, EmptyKey)
	}
	return l
}

func (l LeafNode) RightSibling() uint32 { return bx.U32At(content(l.Page), 0) }
func (l LeafNode) SetRightSibling(v uint32) { bx.PutU32At(content(l.Page), 0, v) }

func (l LeafNode) keyOffset(i int) int { return leafHeaderSize + i*4 }
func (l LeafNode) ridOffset(i int) int { return leafHeaderSize + LeafCap*4 + i*ridSize }

func (l LeafNode) Key(i int) int32 { return bx.I32At(content(l.Page), l.keyOffset(i)) }
func (l LeafNode) SetKey(i int, k int32) {
	bx.PutI32At(content(l.Page), l.keyOffset(i), k)
}

func (l LeafNode) RID(i int) RID {
	c := content(l.Page)
	o := l.ridOffset(i)
	return RID{Page: bx.U32At(c, o), Slot: bx.U16At(c, o+4)}
}

func (l LeafNode) SetRID(i int, r RID) {
	c := content(l.Page)
	o := l.ridOffset(i)
	bx.PutU32At(c, o, r.Page)
	bx.PutU16At(c, o+4, r.Slot)
}

func (l LeafNode) PageID() uint32 { return l.Page.PageID() }

// IsFull reports whether the last key slot is occupied.
func (l LeafNode) IsFull() bool { return l.Key(LeafCap-1) != EmptyKey }

// InnerNode overlays the interior-node layout on a page's content area:
//
//	[0:4)                              level (uint32: 0 or 1)
//	[4:4+4*InnerCap)                   keys (int32, EmptyKey-padded suffix)
//	[4+4*InnerCap:...)                 children (uint32, InnerCap+1 of them)
type InnerNode struct {
	Page *storage.Page
}

func initInner(p *storage.Page, level uint32) InnerNode {
	c := content(p)
	for i := range c {
		c[i] = 0
	}
	n := InnerNode{Page: p}
	n.SetLevel(level)
	for i := 0; i < InnerCap; i++ {
		n.SetKey(i, EmptyKey)
	}
	for i := 0; i < InnerCap+1; i++ {
		n.SetChild(i, InvalidPage)
	}
	return n
}

func (n InnerNode) Level() uint32     { return bx.U32At(content(n.Page), 0) }
func (n InnerNode) SetLevel(v uint32) { bx.PutU32At(content(n.Page), 0, v) }

func (n InnerNode) keyOffset(i int) int   { return innerHeaderSize + i*4 }
func (n InnerNode) childOffset(i int) int { return innerHeaderSize + InnerCap*4 + i*4 }

func (n InnerNode) Key(i int) int32 { return bx.I32At(content(n.Page), n.keyOffset(i)) }
func (n InnerNode) SetKey(i int, k int32) {
	bx.PutI32At(content(n.Page), n.keyOffset(i), k)
}

func (n InnerNode) Child(i int) uint32 { return bx.U32At(content(n.Page), n.childOffset(i)) }
func (n InnerNode) SetChild(i int, v uint32) {
	bx.PutU32At(content(n.Page), n.childOffset(i), v)
}

func (n InnerNode) PageID() uint32 { return n.Page.PageID() }

// IsFull reports whether the last key slot is occupied.
func (n InnerNode) IsFull() bool { return n.Key(InnerCap-1) != EmptyKey }

// findSlot is the rule shared by insertion descent and non-full insertion:
// the smallest index i such that key < keys[i] or keys[i] == EmptyKey. A key
// equal to keys[i] lands after it ("equality goes right"), so duplicates
// keep their insertion order.
func findSlot(keys func(int) int32, n int, key int32) int {
	for i := 0; i < n; i++ {
		k := keys(i)
		if k == EmptyKey || key < k {
			return i
		}
	}
	return n
}

// findLowerSlot is the smallest index i such that key <= keys[i] or
// keys[i] == EmptyKey. Scans descend by it, so a run of keys equal to a
// separator is entered at its leftmost leaf.
func findLowerSlot(keys func(int) int32, n int, key int32) int {
	for i := 0; i < n; i++ {
		k := keys(i)
		if k == EmptyKey || key <= k {
			return i
		}
	}
	return n
}

func (n InnerNode) findChildIndex(key int32) int {
	return findSlot(n.Key, InnerCap, key)
}

func (n InnerNode) findScanChildIndex(key int32) int {
	return findLowerSlot(n.Key, InnerCap, key)
}

func (l LeafNode) findInsertSlot(key int32) int {
	return findSlot(l.Key, LeafCap, key)
}
