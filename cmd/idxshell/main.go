// Command idxshell is an interactive REPL over a B+-tree index: build it
// over a relation, then issue range scans with `scan low lowop high highop`.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/arlobase/bptreeidx/internal/bptree"
	"github.com/arlobase/bptreeidx/internal/bufferpool"
	"github.com/arlobase/bptreeidx/internal/config"
	"github.com/arlobase/bptreeidx/internal/heap"
	"github.com/arlobase/bptreeidx/internal/record"
	"github.com/arlobase/bptreeidx/internal/relscan"
	"github.com/arlobase/bptreeidx/internal/storage"
)

type session struct {
	dir string
	cfg *config.Config
	idx *bptree.Index
}

func main() {
	cfg, err := config.Load(os.Getenv("BPTREEIDX_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "idxshell:", err)
		os.Exit(1)
	}

	rl, err := readline.New("idx> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "idxshell:", err)
		os.Exit(1)
	}
	defer rl.Close()

	s := &session{dir: cfg.Storage.Dir, cfg: cfg}
	defer func() {
		if s.idx != nil {
			_ = s.idx.Close()
		}
	}()

	fmt.Println("bptreeidx shell. Commands: build <relation> <offset>, scan <low> <lowop> <high> <highop>, next, end, quit")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "idxshell:", err)
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := s.dispatch(fields); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func (s *session) dispatch(fields []string) error {
	switch fields[0] {
	case "quit", "exit":
		os.Exit(0)
	case "build":
		if len(fields) != 3 {
			return fmt.Errorf("usage: build <relation> <offset>")
		}
		return s.build(fields[1], fields[2])
	case "scan":
		if len(fields) != 5 {
			return fmt.Errorf("usage: scan <low> <lowop GT|GTE> <high> <highop LT|LTE>")
		}
		return s.scan(fields[1], fields[2], fields[3], fields[4])
	case "next":
		return s.next()
	case "end":
		return s.end()
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func (s *session) build(relation, offsetStr string) error {
	offset, err := strconv.ParseUint(offsetStr, 10, 32)
	if err != nil {
		return fmt.Errorf("bad offset: %w", err)
	}

	sm := storage.NewStorageManager()
	relFS := storage.LocalFileSet{Dir: s.dir, Base: relation}
	relPages, err := sm.CountPages(relFS)
	if err != nil {
		return err
	}
	seed := relPages
	if seed == 0 {
		seed = 1
	}
	relPool := bufferpool.NewPool(sm, relFS, s.cfg.BufferPool.Capacity, seed)
	relTable := heap.NewTable(relation, record.Schema{}, relPool, relPages)

	scanner := relscan.New(relTable)
	defer func() { _ = scanner.Close() }()

	idx, err := bptree.Open(s.dir, relation, uint32(offset), bptree.KeyTypeInt32, s.cfg.BufferPool.Capacity, scanner)
	if err != nil {
		return err
	}
	if s.idx != nil {
		_ = s.idx.Close()
	}
	s.idx = idx
	slog.Info("idxshell: built", "name", idx.Name, "root", idx.RootPage())
	fmt.Printf("built %s (root page %d)\n", idx.Name, idx.RootPage())
	return nil
}

func (s *session) scan(lowStr, lowOpStr, highStr, highOpStr string) error {
	if s.idx == nil {
		return fmt.Errorf("no index built yet; run build first")
	}
	low, err := parseKey(lowStr)
	if err != nil {
		return err
	}
	high, err := parseKey(highStr)
	if err != nil {
		return err
	}
	lowOp, err := parseOp(lowOpStr)
	if err != nil {
		return err
	}
	highOp, err := parseOp(highOpStr)
	if err != nil {
		return err
	}
	if err := s.idx.StartScan(low, lowOp, high, highOp); err != nil {
		return err
	}
	fmt.Println("scan started")
	return nil
}

func (s *session) next() error {
	if s.idx == nil {
		return fmt.Errorf("no index built yet")
	}
	rid, err := s.idx.Next()
	if err != nil {
		return err
	}
	fmt.Printf("rid page=%d slot=%d\n", rid.Page, rid.Slot)
	return nil
}

func (s *session) end() error {
	if s.idx == nil {
		return fmt.Errorf("no index built yet")
	}
	return s.idx.EndScan()
}

func parseKey(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad key %q: %w", s, err)
	}
	return int32(n), nil
}

func parseOp(s string) (bptree.Op, error) {
	switch strings.ToUpper(s) {
	case "GT":
		return bptree.GT, nil
	case "GTE":
		return bptree.GTE, nil
	case "LT":
		return bptree.LT, nil
	case "LTE":
		return bptree.LTE, nil
	default:
		return 0, fmt.Errorf("bad operator %q, want GT|GTE|LT|LTE", s)
	}
}
