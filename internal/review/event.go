package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Event is one learner-submitted review outcome.
type Event struct {
	LearnerID      string `json:"learner_id"`
	ItemID         string `json:"item_id"`
	IsCorrect      bool   `json:"is_correct"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	ChangedAnswer  bool   `json:"changed_answer"`

	// IdempotencyKey identifies the submission. Replays of an applied key
	// are no-ops.
	IdempotencyKey string `json:"idempotency_key"`

	// ReviewedAt is when the learner answered. Nil means the processor's
	// clock at the time the event is applied.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// Validate checks the fields a Go caller can get wrong. JSON input is
// additionally checked for absent fields by DecodeEvent.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.LearnerID) == "":
		return &InvalidInputError{Field: "learner_id", Reason: "must not be empty"}
	case strings.TrimSpace(e.ItemID) == "":
		return &InvalidInputError{Field: "item_id", Reason: "must not be empty"}
	case strings.TrimSpace(e.IdempotencyKey) == "":
		return &InvalidInputError{Field: "idempotency_key", Reason: "must not be empty"}
	case e.ResponseTimeMs < 0:
		return &InvalidInputError{Field: "response_time_ms", Reason: fmt.Sprintf("must not be negative, got %d", e.ResponseTimeMs)}
	}
	return nil
}

// eventSchema is the wire contract for a JSON review event.
const eventSchema = `{
	"type": "object",
	"properties": {
		"learner_id": {"type": "string", "minLength": 1},
		"item_id": {"type": "string", "minLength": 1},
		"is_correct": {"type": "boolean"},
		"response_time_ms": {"type": "integer", "minimum": 0},
		"changed_answer": {"type": "boolean"},
		"idempotency_key": {"type": "string", "minLength": 1},
		"reviewed_at": {"type": "string", "format": "date-time"}
	},
	"required": ["learner_id", "item_id", "is_correct", "response_time_ms", "idempotency_key"],
	"additionalProperties": false
}`

const eventSchemaURL = "schema://review_event.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func getEventSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(eventSchema))
		if err != nil {
			compileErr = fmt.Errorf("parse event schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		c.AssertFormat()
		if err := c.AddResource(eventSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(eventSchemaURL)
	})
	return compiledSchema, compileErr
}

// DecodeEvent parses and validates one JSON review event. Schema violations,
// including a missing response_time_ms, come back as *InvalidInputError.
func DecodeEvent(raw []byte) (Event, error) {
	// jsonschema wants numbers as json.Number so integers are checked exactly.
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Event{}, &InvalidInputError{Reason: "malformed JSON", Err: err}
	}

	schema, err := getEventSchema()
	if err != nil {
		return Event{}, err
	}
	if err := schema.Validate(parsed); err != nil {
		return Event{}, &InvalidInputError{Reason: "schema validation failed", Err: err}
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, &InvalidInputError{Reason: "decode", Err: err}
	}
	return ev, ev.Validate()
}
