package bptree

import (
	"strings"

	"github.com/arlobase/bptreeidx/internal/bx"
	"github.com/arlobase/bptreeidx/internal/storage"
)

// MetaPageID is the fixed page id of the metadata page. Page ids are
// allocated starting at 1, so this is always the first page an index's
// bufferpool.Pool hands out.
const MetaPageID uint32 = 1

// relationNameSize is the fixed width reserved for the relation name in
// the metadata page.
const relationNameSize = 64

// KeyType names the supported attribute type. Only KeyTypeInt32 exists;
// the field is a validation constant checked at Open.
type KeyType uint8

const KeyTypeInt32 KeyType = 1

// metaLayout, relative to the metadata page's content area:
//
//	[0:relationNameSize)                      relation name, NUL-padded
//	[relationNameSize:+4)                     attribute byte offset (uint32)
//	[relationNameSize+4:+1)                   key type tag
//	[relationNameSize+5:+4)                   root page id (uint32)
const (
	metaRelOff  = 0
	metaOffOff  = metaRelOff + relationNameSize
	metaTypeOff = metaOffOff + 4
	metaRootOff = metaTypeOff + 1
)

type meta struct {
	RelationName string
	AttrOffset   uint32
	KeyType      KeyType
	RootPage     uint32
}

func writeMeta(p *storage.Page, m meta) {
	c := content(p)
	for i := range c[:metaRootOff+4] {
		c[i] = 0
	}
	copy(c[metaRelOff:metaRelOff+relationNameSize], m.RelationName)
	bx.PutU32At(c, metaOffOff, m.AttrOffset)
	c[metaTypeOff] = byte(m.KeyType)
	bx.PutU32At(c, metaRootOff, m.RootPage)
}

func readMeta(p *storage.Page) meta {
	c := content(p)
	name := strings.TrimRight(string(c[metaRelOff:metaRelOff+relationNameSize]), "\x00")
	return meta{
		RelationName: name,
		AttrOffset:   bx.U32At(c, metaOffOff),
		KeyType:      KeyType(c[metaTypeOff]),
		RootPage:     bx.U32At(c, metaRootOff),
	}
}

func setMetaRootPage(p *storage.Page, root uint32) {
	bx.PutU32At(content(p), metaRootOff, root)
}
