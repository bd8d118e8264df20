package storage

import "github.com/arlobase/bptreeidx/internal/bx"

// Page is a fixed PageSize-byte slotted page, Postgres-style:
//
//	+------------------+ 0
//	| flags | page_id   |
//	| pd_lower/pd_upper |
//	| LinePointers[]    | <-- grows down from pd_lower
//	+------------------+
//	|    free space     |
//	+------------------+ <-- pd_upper
//	|   tuple data      | <-- grows up from the end, toward pd_upper
//	+------------------+ PageSize
//
// B+-tree nodes (internal/bptree) overlay their own fixed-slot layout
// directly on Buf and never go through the slotted-tuple API below; the
// slotted layout here serves the relation file that bulk-build scans.
type Page struct {
	Buf []byte
}

func NewPage(buf []byte, pageID uint32) Page {
	p := Page{Buf: buf}
	p.init(pageID)
	return p
}

func (p Page) init(pageID uint32) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	bx.PutU16At(p.Buf, 0, 0)          // flags
	bx.PutU32At(p.Buf, 2, pageID)     // page_id
	bx.PutU16At(p.Buf, 6, HeaderSize) // pd_lower
	bx.PutU16At(p.Buf, 8, PageSize)   // pd_upper
	bx.PutU16At(p.Buf, 10, PageSize)  // pd_special (unused)
}

// PageID returns the page id stamped into this page's header.
func (p Page) PageID() uint32 {
	return bx.U32At(p.Buf, 2)
}

func (p Page) Lower() int      { return int(bx.U16At(p.Buf, 6)) }
func (p Page) SetLower(v int)  { bx.PutU16At(p.Buf, 6, uint16(v)) }
func (p Page) Upper() int      { return int(bx.U16At(p.Buf, 8)) }
func (p Page) SetUpper(v int)  { bx.PutU16At(p.Buf, 8, uint16(v)) }
func (p Page) NumSlots() int   { return (p.Lower() - HeaderSize) / SlotSize }

func (p Page) slotOff(idx int) int { return HeaderSize + idx*SlotSize }

func (p Page) GetSlot(i int) (offset, length, flags int) {
	o := p.slotOff(i)
	return int(bx.U16At(p.Buf, o)),
		int(bx.U16At(p.Buf, o+2)),
		int(bx.U16At(p.Buf, o+4))
}

func (p Page) PutSlot(idx, offset, length, flags int) {
	o := p.slotOff(idx)
	bx.PutU16At(p.Buf, o, uint16(offset))
	bx.PutU16At(p.Buf, o+2, uint16(length))
	bx.PutU16At(p.Buf, o+4, uint16(flags))
}

func (p Page) appendSlot(offset, length, flags int) int {
	i := p.NumSlots()
	p.PutSlot(i, offset, length, flags)
	p.SetLower(p.Lower() + SlotSize)
	return i
}

// IsUninitialized reports whether this buffer has never been through init:
// pd_lower and pd_upper are both still zero.
func (p Page) IsUninitialized() bool {
	return bx.U16At(p.Buf, 6) == 0 && bx.U16At(p.Buf, 8) == 0
}

// InsertTuple appends tup to the page's free space and allocates a line
// pointer for it. Returns ErrNoSpace if the page cannot fit tup plus one
// new slot.
func (p Page) InsertTuple(tup []byte) (slot int, err error) {
	need := len(tup) + SlotSize
	if p.Upper()-p.Lower() < need {
		return -1, ErrNoSpace
	}
	u := p.Upper() - len(tup)
	copy(p.Buf[u:], tup)
	p.SetUpper(u)
	return p.appendSlot(u, len(tup), 0), nil
}

func (p Page) ReadTuple(slot int) ([]byte, error) {
	if slot < 0 || slot >= p.NumSlots() {
		return nil, ErrBadSlot
	}
	offset, length, _ := p.GetSlot(slot)
	return p.Buf[offset : offset+length], nil
}
