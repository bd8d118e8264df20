package bptree

import "errors"

var (
	// ErrBadIndexInfo is raised when reopening an index file whose
	// metadata page does not match the relation name, byte offset, or
	// key type supplied to Open.
	ErrBadIndexInfo = errors.New("bptree: index metadata does not match relation/offset/type")

	// ErrBadOperator is raised by StartScan when low_op/high_op are
	// outside {GT, GTE}/{LT, LTE}.
	ErrBadOperator = errors.New("bptree: scan operator outside permitted set")

	// ErrBadRange is raised by StartScan when low > high.
	ErrBadRange = errors.New("bptree: scan low bound exceeds high bound")

	// ErrNoSuchKeyFound is raised by StartScan when the range is
	// well-formed but the sibling chain has no matching key.
	ErrNoSuchKeyFound = errors.New("bptree: no key in range")

	// ErrScanNotInitialized is raised by Next/EndScan without a live
	// cursor (state Idle).
	ErrScanNotInitialized = errors.New("bptree: scan not initialized")

	// ErrIndexScanCompleted is raised by Next once the cursor is
	// exhausted; the cursor remains pinned until EndScan.
	ErrIndexScanCompleted = errors.New("bptree: scan completed")

	// ErrScanActive is raised by StartScan while a previous scan is
	// still positioned or drained; EndScan must be called first.
	ErrScanActive = errors.New("bptree: a scan is already active, call EndScan first")

	// ErrReservedKey is raised by Insert for a key equal to EmptyKey:
	// the sentinel-collision is handled by rejecting the reserved value
	// rather than widening the slot layout.
	ErrReservedKey = errors.New("bptree: key equals the reserved empty-slot sentinel")

	// ErrUnsupportedKeyType is raised by Open for any key type other
	// than the supported fixed-width signed integer.
	ErrUnsupportedKeyType = errors.New("bptree: key type is not the supported fixed-width integer")
)
