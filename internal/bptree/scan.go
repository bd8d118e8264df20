package bptree

import (
	"log/slog"

	"github.com/arlobase/bptreeidx/internal/storage"
)

// Op is a bound operator for StartScan: GT/GTE bound the low end, LT/LTE
// the high end.
type Op int

const (
	GT Op = iota
	GTE
	LT
	LTE
)

func (op Op) match(k, bound int32) bool {
	switch op {
	case GT:
		return k > bound
	case GTE:
		return k >= bound
	case LT:
		return k < bound
	case LTE:
		return k <= bound
	default:
		return false
	}
}

// scanState is the cursor's state machine: Idle -> Positioned -> Drained
// -> Idle.
type scanState int

const (
	scanIdle scanState = iota
	scanPositioned
	scanDrained
)

// Cursor is the stateful scan iterator: positioned on a leaf slot,
// advancing along the sibling chain, bounded by [low, high] under
// lowOp/highOp.
type Cursor struct {
	t *Tree

	state scanState
	low   int32
	high  int32
	lowOp Op
	highOp Op

	page *storage.Page
	slot int
}

// StartScan validates bounds, descends to the leaf that should hold low,
// and positions the cursor on the first matching slot.
func (t *Tree) StartScan(low int32, lowOp Op, high int32, highOp Op) (*Cursor, error) {
	if lowOp != GT && lowOp != GTE {
		return nil, ErrBadOperator
	}
	if highOp != LT && highOp != LTE {
		return nil, ErrBadOperator
	}
	if low > high {
		return nil, ErrBadRange
	}

	leafID, err := t.descendToLeaf(low)
	if err != nil {
		return nil, err
	}
	page, err := t.bp.ReadPage(leafID)
	if err != nil {
		return nil, err
	}

	c := &Cursor{t: t, low: low, high: high, lowOp: lowOp, highOp: highOp}
	for {
		leaf := LeafNode{Page: page}
		found := false
		for slot := 0; slot < LeafCap; slot++ {
			k := leaf.Key(slot)
			if k == EmptyKey {
				break
			}
			if lowOp.match(k, low) && highOp.match(k, high) {
				c.page = page
				c.slot = slot
				c.state = scanPositioned
				found = true
				break
			}
			if !highOp.match(k, high) {
				// keys are non-decreasing: once k fails the high bound,
				// no later key anywhere can satisfy it.
				_ = t.bp.UnpinPage(page, false)
				return nil, ErrNoSuchKeyFound
			}
		}
		if found {
			return c, nil
		}

		next := leaf.RightSibling()
		if next == InvalidPage {
			_ = t.bp.UnpinPage(page, false)
			return nil, ErrNoSuchKeyFound
		}
		if err := t.bp.UnpinPage(page, false); err != nil {
			return nil, err
		}
		page, err = t.bp.ReadPage(next)
		if err != nil {
			return nil, err
		}
	}
}

// descendToLeaf walks from the root to the leftmost leaf that can hold key,
// unpinning every transient interior page it visits. It picks children by
// findScanChildIndex, which goes left on a key equal to a separator, so
// copies of key left of a split point are not skipped.
func (t *Tree) descendToLeaf(key int32) (uint32, error) {
	pageID := t.rootPage
	for {
		page, err := t.bp.ReadPage(pageID)
		if err != nil {
			return 0, err
		}
		node := InnerNode{Page: page}
		i := node.findScanChildIndex(key)
		child := node.Child(i)
		level := node.Level()
		if err := t.bp.UnpinPage(page, false); err != nil {
			return 0, err
		}
		if level == 1 {
			return child, nil
		}
		pageID = child
	}
}

// Next returns the next matching RID, or ErrIndexScanCompleted once the
// cursor is exhausted. An exhausted cursor stays pinned until EndScan
// releases it.
func (c *Cursor) Next() (RID, error) {
	if c.state == scanDrained {
		return RID{}, ErrIndexScanCompleted
	}
	if c.state != scanPositioned {
		return RID{}, ErrScanNotInitialized
	}

	for {
		leaf := LeafNode{Page: c.page}
		if c.slot == LeafCap || leaf.Key(c.slot) == EmptyKey {
			next := leaf.RightSibling()
			if next == InvalidPage {
				c.state = scanDrained
				return RID{}, ErrIndexScanCompleted
			}
			if err := c.t.bp.UnpinPage(c.page, false); err != nil {
				return RID{}, err
			}
			page, err := c.t.bp.ReadPage(next)
			if err != nil {
				return RID{}, err
			}
			c.page = page
			c.slot = 0
			continue
		}

		k := leaf.Key(c.slot)
		if c.lowOp.match(k, c.low) && c.highOp.match(k, c.high) {
			rid := leaf.RID(c.slot)
			c.slot++
			return rid, nil
		}
		c.state = scanDrained
		return RID{}, ErrIndexScanCompleted
	}
}

// EndScan releases the pinned leaf (if any) and deactivates the cursor.
func (c *Cursor) EndScan() error {
	if c.state == scanIdle {
		return ErrScanNotInitialized
	}
	err := c.t.bp.UnpinPage(c.page, false)
	c.page = nil
	c.state = scanIdle
	slog.Debug("bptree: scan ended")
	return err
}
