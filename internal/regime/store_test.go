package regime

import (
	"sync"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
)

func snapWithSeq(seq uint64) *models.RegimeSnapshot {
	return &models.RegimeSnapshot{Seq: seq, Timestamp: time.Now()}
}

func TestStoreStartsEmpty(t *testing.T) {
	s := NewStore()
	if s.Current() != nil {
		t.Fatal("fresh store returned a snapshot")
	}
}

func TestStoreDropsStaleSeq(t *testing.T) {
	s := NewStore()

	if !s.Publish(snapWithSeq(1)) {
		t.Fatal("first publish rejected")
	}
	if !s.Publish(snapWithSeq(3)) {
		t.Fatal("newer publish rejected")
	}
	if s.Publish(snapWithSeq(2)) {
		t.Error("stale publish accepted")
	}
	if s.Publish(snapWithSeq(3)) {
		t.Error("duplicate seq accepted")
	}

	cur := s.Current()
	if cur == nil || cur.Seq != 3 {
		t.Fatalf("current = %+v, want seq 3", cur)
	}
}

func TestStoreConcurrentPublishKeepsHighestSeq(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			s.Publish(snapWithSeq(seq))
		}(uint64(i))
	}
	wg.Wait()

	cur := s.Current()
	if cur == nil || cur.Seq != 50 {
		t.Fatalf("current seq = %v, want 50", cur)
	}
}
