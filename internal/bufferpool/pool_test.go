package bufferpool_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arlobase/bptreeidx/internal/bufferpool"
	"github.com/arlobase/bptreeidx/internal/storage"
)

func newTestPool(t *testing.T, capacity int) (*bufferpool.Pool, storage.FileSet) {
	t.Helper()
	dir, err := os.MkdirTemp("", "bufferpool-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	fs := storage.LocalFileSet{Dir: dir, Base: "data"}
	sm := storage.NewStorageManager()
	return bufferpool.NewPool(sm, fs, capacity, 0), fs
}

func TestPool_AllocThenReadRoundTrips(t *testing.T) {
	p, _ := newTestPool(t, 4)

	id, page, err := p.AllocPage()
	require.NoError(t, err)
	require.Equal(t, uint32(0), id)
	page.Buf[100] = 0xAB
	require.NoError(t, p.UnpinPage(page, true))

	got, err := p.ReadPage(id)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), got.Buf[100])
	require.NoError(t, p.UnpinPage(got, false))
}

func TestPool_AllocPage_Full_NoFreeFrameWhenAllPinned(t *testing.T) {
	p, _ := newTestPool(t, 2)

	_, p0, err := p.AllocPage()
	require.NoError(t, err)
	_, p1, err := p.AllocPage()
	require.NoError(t, err)
	_ = p0
	_ = p1

	_, _, err = p.AllocPage()
	require.ErrorIs(t, err, bufferpool.ErrNoFreeFrame)
}

func TestPool_EvictsUnpinnedDirtyFrameAndPersists(t *testing.T) {
	p, _ := newTestPool(t, 1)

	id0, page0, err := p.AllocPage()
	require.NoError(t, err)
	page0.Buf[0] = 0x11
	require.NoError(t, p.UnpinPage(page0, true))

	id1, page1, err := p.AllocPage()
	require.NoError(t, err)
	require.NotEqual(t, id0, id1)
	require.NoError(t, p.UnpinPage(page1, false))

	got, err := p.ReadPage(id0)
	require.NoError(t, err)
	require.Equal(t, byte(0x11), got.Buf[0])
	require.NoError(t, p.UnpinPage(got, false))
}

func TestPool_UnpinPage_AlreadyZeroIsError(t *testing.T) {
	p, _ := newTestPool(t, 2)

	_, page, err := p.AllocPage()
	require.NoError(t, err)
	require.NoError(t, p.UnpinPage(page, false))
	require.ErrorIs(t, p.UnpinPage(page, false), bufferpool.ErrPagePinned)
}

func TestPool_FlushFile_WritesDirtyFramesToDisk(t *testing.T) {
	p, fs := newTestPool(t, 4)

	id, page, err := p.AllocPage()
	require.NoError(t, err)
	page.Buf[42] = 0x7F
	require.NoError(t, p.UnpinPage(page, true))
	require.NoError(t, p.FlushFile())

	sm := storage.NewStorageManager()
	reloaded, err := sm.LoadPage(fs, id)
	require.NoError(t, err)
	require.Equal(t, byte(0x7F), reloaded.Buf[42])
}

func TestNewPool_DefaultCapacity(t *testing.T) {
	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: t.TempDir(), Base: "data"}
	p := bufferpool.NewPool(sm, fs, 0, 0)
	require.NotNil(t, p)
}
