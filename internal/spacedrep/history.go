package spacedrep

import (
	"encoding/json"
	"time"
)

// DefaultHistoryCapacity is used when a History has no capacity set.
const DefaultHistoryCapacity = 10

// PerformanceRecord is one entry in a schedule's recent history.
type PerformanceRecord struct {
	Date           time.Time   `json:"date"`
	Rating         Performance `json:"performance_rating"`
	ResponseTimeMs int64       `json:"response_time_ms"`
}

// History keeps the most recent reviews up to a fixed capacity, oldest
// first. Pushing onto a full history evicts the oldest entry.
type History struct {
	capacity int
	entries  []PerformanceRecord
}

// NewHistory returns an empty history holding at most capacity entries.
func NewHistory(capacity int) History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return History{capacity: capacity, entries: make([]PerformanceRecord, 0, capacity)}
}

// Push appends a record, evicting the oldest one when full.
func (h *History) Push(r PerformanceRecord) {
	if h.capacity <= 0 {
		h.capacity = DefaultHistoryCapacity
	}
	if len(h.entries) < h.capacity {
		h.entries = append(h.entries, r)
		return
	}
	copy(h.entries, h.entries[1:])
	h.entries[len(h.entries)-1] = r
}

// Entries returns a copy of the records, oldest first.
func (h History) Entries() []PerformanceRecord {
	out := make([]PerformanceRecord, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h History) Len() int { return len(h.entries) }
func (h History) Cap() int { return h.capacity }

// Resize changes the capacity, keeping the newest entries.
func (h *History) Resize(capacity int) {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	entries := h.entries
	if len(entries) > capacity {
		entries = entries[len(entries)-capacity:]
	}
	resized := make([]PerformanceRecord, len(entries), capacity)
	copy(resized, entries)
	h.capacity = capacity
	h.entries = resized
}

func (h History) clone() History {
	if h.entries == nil {
		return History{capacity: h.capacity}
	}
	entries := make([]PerformanceRecord, len(h.entries), max(h.capacity, len(h.entries)))
	copy(entries, h.entries)
	return History{capacity: h.capacity, entries: entries}
}

type historyJSON struct {
	Capacity int                 `json:"capacity"`
	Entries  []PerformanceRecord `json:"entries"`
}

func (h History) MarshalJSON() ([]byte, error) {
	return json.Marshal(historyJSON{Capacity: h.capacity, Entries: h.entries})
}

func (h *History) UnmarshalJSON(data []byte) error {
	var aux historyJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	h.capacity = aux.Capacity
	h.entries = aux.Entries
	if h.capacity > 0 && len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
	return nil
}
