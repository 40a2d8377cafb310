package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus/cmd/identity/ids"
)

// Version is the notification envelope version.
const Version = 1

// Server-to-client event types.
const (
	TypeReady            = "ready"
	TypeAttendanceMarked = "attendance.marked"
	TypeResultPublished  = "result.published"
	TypeFeeCreated       = "fee.created"
	TypeError            = "error"
)

var allowedTypes = map[string]struct{}{
	TypeReady:            {},
	TypeAttendanceMarked: {},
	TypeResultPublished:  {},
	TypeFeeCreated:       {},
	TypeError:            {},
}

// Event is the JSON envelope written to websocket clients.
type Event struct {
	V    int             `json:"v"`
	Type string          `json:"type"`
	ID   string          `json:"id"`
	TS   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type ReadyData struct {
	SessionID string `json:"session_id"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent marshals data into an envelope of type typ.
func NewEvent(typ string, data any, now time.Time) (Event, error) {
	if _, ok := allowedTypes[typ]; !ok {
		return Event{}, fmt.Errorf("notify: unsupported type: %s", typ)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("notify: marshal %s: %w", typ, err)
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Event{}, err
	}
	return Event{V: Version, Type: typ, ID: id, TS: now.UTC(), Data: raw}, nil
}

func (e Event) Validate() error {
	if e.V != Version {
		return fmt.Errorf("invalid protocol version: got=%d want=%d", e.V, Version)
	}
	if _, ok := allowedTypes[e.Type]; !ok {
		return fmt.Errorf("unsupported type: %q", e.Type)
	}
	if e.ID == "" {
		return errors.New("missing id")
	}
	if e.TS.IsZero() {
		return errors.New("missing ts")
	}
	if e.Data == nil {
		return errors.New("missing data")
	}
	return nil
}
