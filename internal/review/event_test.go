package review

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"learner_id":"l1","item_id":"i1","is_correct":true,"response_time_ms":2500,"idempotency_key":"k1"}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	want := Event{LearnerID: "l1", ItemID: "i1", IsCorrect: true, ResponseTimeMs: 2500, IdempotencyKey: "k1"}
	if ev != want {
		t.Errorf("DecodeEvent() = %+v, want %+v", ev, want)
	}
}

func TestDecodeEvent_ReviewedAt(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"learner_id":"l1","item_id":"i1","is_correct":false,"response_time_ms":900,"idempotency_key":"k1","reviewed_at":"2025-01-01T08:30:00+02:00"}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	want := time.Date(2025, 1, 1, 6, 30, 0, 0, time.UTC)
	if ev.ReviewedAt == nil || !ev.ReviewedAt.Equal(want) {
		t.Errorf("ReviewedAt = %v, want %v", ev.ReviewedAt, want)
	}
}

func TestDecodeEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"learner_id":`},
		{"missing response time", `{"learner_id":"l1","item_id":"i1","is_correct":true,"idempotency_key":"k1"}`},
		{"negative response time", `{"learner_id":"l1","item_id":"i1","is_correct":true,"response_time_ms":-5,"idempotency_key":"k1"}`},
		{"fractional response time", `{"learner_id":"l1","item_id":"i1","is_correct":true,"response_time_ms":12.5,"idempotency_key":"k1"}`},
		{"string response time", `{"learner_id":"l1","item_id":"i1","is_correct":true,"response_time_ms":"fast","idempotency_key":"k1"}`},
		{"empty learner", `{"learner_id":"","item_id":"i1","is_correct":true,"response_time_ms":100,"idempotency_key":"k1"}`},
		{"missing key", `{"learner_id":"l1","item_id":"i1","is_correct":true,"response_time_ms":100}`},
		{"bad reviewed_at", `{"learner_id":"l1","item_id":"i1","is_correct":true,"response_time_ms":100,"idempotency_key":"k1","reviewed_at":"yesterday"}`},
		{"unknown field", `{"learner_id":"l1","item_id":"i1","is_correct":true,"response_time_ms":100,"idempotency_key":"k1","score":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.raw))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("DecodeEvent() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &InvalidInputError{Field: "response_time_ms", Reason: "must not be negative"}
	if got, want := err.Error(), "invalid review event: response_time_ms: must not be negative"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if errors.Is(err, ErrConflict) {
		t.Error("InvalidInputError must not match ErrConflict")
	}
}
