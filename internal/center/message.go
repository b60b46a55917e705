package center

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageType classifies a notification by severity.
type MessageType int

const (
	TypeNotification MessageType = iota
	TypeAcknowledgement
	TypeAlert
	TypeSabotage
	TypeBattery
)

var messageTypeNames = [...]string{
	TypeNotification:    "notification",
	TypeAcknowledgement: "acknowledgement",
	TypeAlert:           "alert",
	TypeSabotage:        "sabotage",
	TypeBattery:         "battery",
}

// AllMessageTypes returns every message type in ordinal order.
func AllMessageTypes() []MessageType {
	out := make([]MessageType, len(messageTypeNames))
	for i := range messageTypeNames {
		out[i] = MessageType(i)
	}
	return out
}

func (t MessageType) Valid() bool { return t >= 0 && int(t) < len(messageTypeNames) }

func (t MessageType) String() string {
	if !t.Valid() {
		return "MessageType(" + strconv.Itoa(int(t)) + ")"
	}
	return messageTypeNames[t]
}

// ParseMessageType accepts a name (case-insensitive) or a numeric ordinal.
func ParseMessageType(s string) (MessageType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range messageTypeNames {
		if n == s {
			return MessageType(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && MessageType(n).Valid() {
		return MessageType(n), nil
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}

func (t MessageType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid message type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *MessageType) UnmarshalText(b []byte) error {
	v, err := ParseMessageType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// UnmarshalJSON accepts a name, a quoted ordinal or a bare ordinal.
func (t *MessageType) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return fmt.Errorf("message type: %w", err)
		}
		return t.UnmarshalText([]byte(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil || !MessageType(n).Valid() {
		return fmt.Errorf("unknown message type %s", b)
	}
	*t = MessageType(n)
	return nil
}
