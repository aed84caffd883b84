package event

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Execution records the outcome of invoking an event.
type Execution struct {
	Status   Status
	Duration time.Duration
	Response any
	Error    string
}

// MarshalJSON writes the duration in seconds and omits empty fields.
func (e Execution) MarshalJSON() ([]byte, error) {
	result := []byte(`{}`)

	var err error
	result, err = sjson.SetBytes(result, "status", e.Status.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "duration", e.Duration.Seconds())
	if err != nil {
		return nil, err
	}

	if e.Response != nil {
		var raw []byte
		raw, err = json.Marshal(e.Response)
		if err != nil {
			return nil, fmt.Errorf("marshal response: %w", err)
		}
		result, err = sjson.SetRawBytes(result, "response", raw)
		if err != nil {
			return nil, err
		}
	}

	if e.Error != "" {
		result, err = sjson.SetBytes(result, "error", e.Error)
	}
	return result, err
}

// UnmarshalJSON reads what MarshalJSON writes. The response is decoded into
// generic JSON values.
func (e *Execution) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	status := gjson.GetBytes(data, "status")
	if !status.Exists() {
		return fmt.Errorf("missing required field 'status'")
	}
	if err := e.Status.UnmarshalText([]byte(status.String())); err != nil {
		return err
	}

	e.Duration = time.Duration(gjson.GetBytes(data, "duration").Float() * float64(time.Second))
	e.Error = gjson.GetBytes(data, "error").String()
	e.Response = nil
	if resp := gjson.GetBytes(data, "response"); resp.Exists() {
		e.Response = resp.Value()
	}
	return nil
}
