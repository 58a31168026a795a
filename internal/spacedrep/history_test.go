package spacedrep

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Push(PerformanceRecord{Date: base.AddDate(0, 0, i), Rating: Performance(i), ResponseTimeMs: int64(i * 100)})
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	got := h.Entries()
	for i, r := range got {
		if r.Rating != Performance(i+2) {
			t.Errorf("entry %d rating = %d, want %d", i, r.Rating, i+2)
		}
	}
}

func TestHistory_EntriesIsACopy(t *testing.T) {
	h := NewHistory(2)
	h.Push(PerformanceRecord{Rating: 4})
	entries := h.Entries()
	entries[0].Rating = 1
	if h.Entries()[0].Rating != 4 {
		t.Error("mutating Entries() changed the history")
	}
}

func TestHistory_Resize(t *testing.T) {
	h := NewHistory(5)
	for i := 0; i < 5; i++ {
		h.Push(PerformanceRecord{Rating: Performance(i)})
	}
	h.Resize(2)
	if h.Cap() != 2 || h.Len() != 2 {
		t.Fatalf("after resize cap=%d len=%d, want 2/2", h.Cap(), h.Len())
	}
	if h.Entries()[0].Rating != 3 {
		t.Errorf("oldest kept rating = %d, want 3", h.Entries()[0].Rating)
	}
}

func TestHistory_JSONRoundTrip(t *testing.T) {
	h := NewHistory(4)
	h.Push(PerformanceRecord{Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Rating: 5, ResponseTimeMs: 1200})
	h.Push(PerformanceRecord{Date: time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), Rating: 1, ResponseTimeMs: 9000})

	b, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var back History
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Cap() != 4 {
		t.Errorf("Cap() = %d, want 4", back.Cap())
	}
	if !reflect.DeepEqual(back.Entries(), h.Entries()) {
		t.Errorf("entries = %+v, want %+v", back.Entries(), h.Entries())
	}
}
