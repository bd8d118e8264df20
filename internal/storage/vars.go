package storage

import "errors"

const (
	// PageSize is the fixed on-disk page size for every paged file this
	// module manages: relation files and B+-tree index files alike.
	PageSize = 8192

	// SegmentSize bounds how large a single backing file grows before a
	// new numbered segment (Base.1, Base.2, ...) is opened.
	SegmentSize = 1 << 30 // 1 GiB

	// HeaderSize is the fixed-size page header preceding the line-pointer
	// array on every slotted page: flags(2) + page_id(4) + pd_lower(2) +
	// pd_upper(2) + pd_special(2).
	HeaderSize = 12

	// SlotSize is the width of one line pointer: offset(2) + length(2) +
	// flags(2).
	SlotSize = 6
)

var (
	// ErrNoSpace is returned by InsertTuple when a page has no free space
	// left for the given tuple.
	ErrNoSpace = errors.New("storage: no space left on page")

	// ErrBadSlot is returned by ReadTuple for an out-of-range slot.
	ErrBadSlot = errors.New("storage: bad slot")

	// ErrBadPageSize is returned when a buffer passed to ReadPage/WritePage
	// is not exactly PageSize bytes.
	ErrBadPageSize = errors.New("storage: buffer is not exactly one page")
)
