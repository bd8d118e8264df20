// Command idxtool builds a B+-tree secondary index over an existing
// relation file and reports the resulting index name and root page.
// It is the one-shot counterpart to cmd/idxshell's interactive REPL.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/arlobase/bptreeidx/internal/bptree"
	"github.com/arlobase/bptreeidx/internal/bufferpool"
	"github.com/arlobase/bptreeidx/internal/config"
	"github.com/arlobase/bptreeidx/internal/heap"
	"github.com/arlobase/bptreeidx/internal/record"
	"github.com/arlobase/bptreeidx/internal/relscan"
	"github.com/arlobase/bptreeidx/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		dir        = flag.String("dir", ".", "directory holding the relation and index files")
		relation   = flag.String("relation", "", "relation file base name (required)")
		offset     = flag.Uint("offset", 0, "byte offset of the int32 key within each row (required)")
	)
	flag.Parse()

	if *relation == "" {
		fmt.Fprintln(os.Stderr, "idxtool: -relation is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	dirToUse := *dir
	if cfg.Storage.Dir != "." {
		dirToUse = cfg.Storage.Dir
	}

	sm := storage.NewStorageManager()
	relFS := storage.LocalFileSet{Dir: dirToUse, Base: *relation}
	relPages, err := sm.CountPages(relFS)
	if err != nil {
		fatal(err)
	}
	relPool := bufferpool.NewPool(sm, relFS, cfg.BufferPool.Capacity, max1(relPages))
	relTable := heap.NewTable(*relation, record.Schema{}, relPool, relPages)

	scanner := relscan.New(relTable)
	defer func() { _ = scanner.Close() }()

	idx, err := bptree.Open(dirToUse, *relation, uint32(*offset), bptree.KeyTypeInt32, cfg.BufferPool.Capacity, scanner)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = idx.Close() }()

	slog.Info("idxtool: built index", "name", idx.Name, "root", idx.RootPage())
	fmt.Printf("built %s (root page %d)\n", idx.Name, idx.RootPage())
}

func max1(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	return n
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "idxtool:", err)
	os.Exit(1)
}
