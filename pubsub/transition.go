package pubsub

import (
	"fmt"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var transitionJSON = []byte(`{"type":"transition"}`)

// Transition records an event reaching a terminal status.
type Transition struct {
	EventID   uuid.UUID       `json:"event_id"`
	Kind      string          `json:"kind"`
	Status    event.Status    `json:"status"`
	Duration  time.Duration   `json:"duration"`
	Error     string          `json:"error,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// FromEvent captures the current execution of ev.
func FromEvent(ev event.Event) Transition {
	exec := ev.Execution()
	return Transition{
		EventID:   ev.ID(),
		Kind:      event.KindOf(ev),
		Status:    exec.Status,
		Duration:  exec.Duration,
		Error:     exec.Error,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func (t Transition) Failed() bool { return t.Status == event.Failed }

// MarshalJSON writes the duration in seconds, like the execution record.
func (t Transition) MarshalJSON() ([]byte, error) {
	result := transitionJSON

	var err error
	result, err = sjson.SetBytes(result, "event_id", t.EventID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "kind", t.Kind)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "status", t.Status.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "duration", t.Duration.Seconds())
	if err != nil {
		return nil, err
	}

	if t.Error != "" {
		result, err = sjson.SetBytes(result, "error", t.Error)
		if err != nil {
			return nil, err
		}
	}

	if !t.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", t.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (t *Transition) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "transition" {
		return fmt.Errorf("missing or invalid type, expected 'transition'")
	}

	eventID := gjson.GetBytes(data, "event_id")
	if !eventID.Exists() {
		return fmt.Errorf("missing required field 'event_id'")
	}
	if err := t.EventID.UnmarshalText([]byte(eventID.String())); err != nil {
		return fmt.Errorf("invalid event_id: %w", err)
	}

	status := gjson.GetBytes(data, "status")
	if !status.Exists() {
		return fmt.Errorf("missing required field 'status'")
	}
	if err := t.Status.UnmarshalText([]byte(status.String())); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	t.Kind = gjson.GetBytes(data, "kind").String()
	t.Duration = time.Duration(gjson.GetBytes(data, "duration").Float() * float64(time.Second))
	t.Error = gjson.GetBytes(data, "error").String()

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := t.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}
