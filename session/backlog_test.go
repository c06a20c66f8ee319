package session

import (
	"sync"
	"testing"
)

func TestBacklogWrite(t *testing.T) {
	buf := newBacklogBuf(0)
	buf.Write(Event{Seq: 1, Type: "a"})
	buf.Write(Event{Seq: 2, Type: "b"})
	got := buf.Since(0)
	if len(got) != 2 || got[0].Type != "a" || got[1].Type != "b" {
		t.Fatalf("unexpected backlog %+v", got)
	}
}

func TestBacklogTruncation(t *testing.T) {
	buf := newBacklogBuf(3)
	for i := uint64(1); i <= 5; i++ {
		buf.Write(Event{Seq: i})
	}
	got := buf.Since(0)
	if len(got) != 3 {
		t.Fatalf("expected length 3, got %d", len(got))
	}
	if got[0].Seq != 3 || got[2].Seq != 5 {
		t.Fatalf("expected seqs 3..5, got %+v", got)
	}
}

func TestBacklogSinceCopy(t *testing.T) {
	buf := newBacklogBuf(0)
	buf.Write(Event{Seq: 1, Type: "data"})
	snap := buf.Since(0)
	snap[0].Type = "X"
	// Original should be unaffected.
	if buf.Since(0)[0].Type == "X" {
		t.Fatal("Since is not a copy; original data was modified")
	}
}

func TestBacklogEmpty(t *testing.T) {
	buf := newBacklogBuf(0)
	if snap := buf.Since(0); snap != nil {
		t.Fatalf("expected nil snapshot for empty buf, got %v", snap)
	}
}

func TestBacklogConcurrent(t *testing.T) {
	buf := newBacklogBuf(10)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			buf.Write(Event{Seq: uint64(n)})
			buf.Since(0)
		}(i)
	}
	wg.Wait()
}
