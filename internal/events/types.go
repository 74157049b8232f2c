// Package events provides the event bus and hook dispatcher for the
// ACD daemon.
package events

import (
	"encoding/json"
	"net"
	"strconv"
	"time"
)

// EventType identifies the kind of notification raised by an
// acd.Detector instance.
type EventType string

const (
	EventBind        EventType = "bind"
	EventConflict    EventType = "conflict"
	EventStop        EventType = "stop"
	EventRateLimited EventType = "rate_limited"
)

// Event is the payload passed through the event bus. Instance carries
// the watched address and interface common to every event type;
// Conflict is set only for EventConflict.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Instance  *InstanceData `json:"instance"`
	Conflict  *ConflictData `json:"conflict,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// InstanceData identifies the acd.Detector that raised the event.
type InstanceData struct {
	Address   net.IP           `json:"address"`
	Interface string           `json:"interface"`
	MAC       net.HardwareAddr `json:"mac,omitempty"`
	State     string           `json:"state"`
}

// ConflictData carries the details of a detected ARP conflict.
type ConflictData struct {
	ConflictCount int    `json:"conflict_count"`
	ResponderMAC  string `json:"responder_mac,omitempty"`
	Defended      bool   `json:"defended"`
}

// MarshalJSON implements custom JSON marshalling for Event.
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	})
}

// ToEnvVars converts an event to environment variables for script hooks.
func (e *Event) ToEnvVars() map[string]string {
	env := map[string]string{
		"ACD_EVENT": string(e.Type),
	}

	if e.Instance != nil {
		i := e.Instance
		if i.Address != nil {
			env["ACD_ADDRESS"] = i.Address.String()
		}
		if i.Interface != "" {
			env["ACD_INTERFACE"] = i.Interface
		}
		if i.MAC != nil {
			env["ACD_MAC"] = i.MAC.String()
		}
		env["ACD_STATE"] = i.State
	}

	if e.Conflict != nil {
		c := e.Conflict
		env["ACD_CONFLICT_COUNT"] = strconv.Itoa(c.ConflictCount)
		if c.ResponderMAC != "" {
			env["ACD_CONFLICT_RESPONDER_MAC"] = c.ResponderMAC
		}
		if c.Defended {
			env["ACD_CONFLICT_DEFENDED"] = "1"
		}
	}

	if e.Reason != "" {
		env["ACD_REASON"] = e.Reason
	}

	return env
}
