package heap

// TID (tuple id) addresses one row of a Table: the page it lives on and its
// slot within that page's line-pointer array.
type TID struct {
	PageID uint32
	Slot   uint16
}
