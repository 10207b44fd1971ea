package selection

import (
	"sync"
	"testing"
)

func TestStateSetAndClear(t *testing.T) {
	s := New()
	if !s.Current().CandidateID.IsNone() {
		t.Fatal("new state should have no selection")
	}

	s.Set(7)
	if id, ok := s.Current().CandidateID.Get(); !ok || id != 7 {
		t.Fatalf("expected selection 7, got %v", s.Current().CandidateID)
	}

	// Stale ids are accepted.
	s.Set(999)
	if id, _ := s.Current().CandidateID.Get(); id != 999 {
		t.Fatalf("expected overwrite to 999, got %d", id)
	}

	s.Clear()
	if !s.Current().CandidateID.IsNone() {
		t.Fatal("expected none after Clear")
	}
}

func TestStateConcurrentReadsSeeWholeValues(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			s.Set(id)
		}(int64(i))
		go func() {
			defer wg.Done()
			ref := s.Current().CandidateID
			if ref.Valid && (ref.ID < 1 || ref.ID > 50) {
				t.Errorf("observed partial selection %v", ref)
			}
		}()
	}
	wg.Wait()
}

func TestStateSetNonPositiveIsNone(t *testing.T) {
	s := New()
	s.Set(3)
	for _, id := range []int64{0, -1} {
		s.Set(id)
		if !s.Current().CandidateID.IsNone() {
			t.Fatalf("Set(%d) should leave no selection, got %v", id, s.Current().CandidateID)
		}
	}
}
