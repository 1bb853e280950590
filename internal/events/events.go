// Package events defines the EventRecord wire schema and the typed payload
// variant for each of the eleven event types the projector understands.
// Payloads are discriminated by the sibling "type" field, which selects a
// concrete struct before the rest is unmarshaled: payload is never kept as
// an untyped map past the read boundary.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/misty-step/tsq/internal/tsqerr"
)

// Type identifies an event's shape and meaning.
type Type string

const (
	TypeTaskCreated      Type = "task.created"
	TypeTaskUpdated      Type = "task.updated"
	TypeTaskStatusSet    Type = "task.status_set"
	TypeTaskClaimed      Type = "task.claimed"
	TypeTaskNoted        Type = "task.noted"
	TypeTaskSpecAttached Type = "task.spec_attached"
	TypeTaskSuperseded   Type = "task.superseded"
	TypeDepAdded         Type = "dep.added"
	TypeDepRemoved       Type = "dep.removed"
	TypeLinkAdded        Type = "link.added"
	TypeLinkRemoved      Type = "link.removed"
)

// Valid reports whether t is one of the eleven known event types.
func (t Type) Valid() bool {
	switch t {
	case TypeTaskCreated, TypeTaskUpdated, TypeTaskStatusSet, TypeTaskClaimed,
		TypeTaskNoted, TypeTaskSpecAttached, TypeTaskSuperseded,
		TypeDepAdded, TypeDepRemoved, TypeLinkAdded, TypeLinkRemoved:
		return true
	default:
		return false
	}
}

// DepType is the kind of a dependency edge.
type DepType string

const (
	DepBlocks      DepType = "blocks"
	DepStartsAfter DepType = "starts_after"
)

// LinkType is the kind of a relation edge.
type LinkType string

const (
	LinkRelatesTo  LinkType = "relates_to"
	LinkRepliesTo  LinkType = "replies_to"
	LinkDuplicates LinkType = "duplicates"
	LinkSupersedes LinkType = "supersedes"
)

// Payload is implemented by every per-type payload struct.
type Payload interface {
	// eventType reports the Type this payload is carried by, used to catch
	// construction mistakes that pair a payload with the wrong type tag.
	eventType() Type
	// validate checks required-field presence for this payload shape,
	// returning an *tsqerr.Error with CodeInvalidEvent on failure.
	validate() error
}

// Record is one canonical log entry.
type Record struct {
	EventID string
	TS      time.Time
	Actor   string
	Type    Type
	TaskID  string
	Payload Payload
}

// wireRecord is the JSON shape of Record; Payload is re-typed per the
// sibling Type field during unmarshal.
type wireRecord struct {
	EventID string          `json:"event_id"`
	TS      time.Time       `json:"ts"`
	Actor   string          `json:"actor"`
	Type    Type            `json:"type"`
	TaskID  string          `json:"task_id"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireRecord{
		EventID: r.EventID,
		TS:      r.TS,
		Actor:   r.Actor,
		Type:    r.Type,
		TaskID:  r.TaskID,
		Payload: payload,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It validates presence and
// string-typing of event_id/ts/actor/type/task_id, that payload is a JSON
// object (an absent payload is read as an empty object), and the per-type
// required payload fields, per the journal read contract.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return tsqerr.Wrap(tsqerr.CodeInvalidEvent, "event is not a JSON object", err)
	}

	var wire wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return tsqerr.Wrap(tsqerr.CodeInvalidEvent, "malformed event record", err)
	}

	for _, field := range []struct {
		name string
		val  string
	}{
		{"event_id", wire.EventID},
		{"actor", wire.Actor},
		{"task_id", wire.TaskID},
	} {
		if _, ok := raw[field.name]; !ok {
			return tsqerr.Newf(tsqerr.CodeInvalidEvent, "event missing required field %q", field.name)
		}
		if field.val == "" {
			return tsqerr.Newf(tsqerr.CodeInvalidEvent, "event field %q must be a non-empty string", field.name)
		}
	}
	if _, ok := raw["ts"]; !ok {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "event missing required field \"ts\"")
	}
	if string(wire.Type) == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "event missing required field \"type\"")
	}
	if !wire.Type.Valid() {
		return tsqerr.Newf(tsqerr.CodeInvalidEventType, "unrecognized event type %q", wire.Type)
	}
	payloadRaw, ok := raw["payload"]
	if !ok {
		payloadRaw = json.RawMessage("{}")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payloadRaw, &probe); err != nil || probe == nil {
		return tsqerr.Newf(tsqerr.CodeInvalidEvent, "event %q payload must be a JSON object", wire.Type)
	}

	payload, err := decodePayload(wire.Type, payloadRaw)
	if err != nil {
		return err
	}
	if err := payload.validate(); err != nil {
		return err
	}

	r.EventID = wire.EventID
	r.TS = wire.TS
	r.Actor = wire.Actor
	r.Type = wire.Type
	r.TaskID = wire.TaskID
	r.Payload = payload
	return nil
}

// decodePayload unmarshals payloadRaw into the concrete struct matching t.
func decodePayload(t Type, payloadRaw json.RawMessage) (Payload, error) {
	switch t {
	case TypeTaskCreated:
		var p TaskCreatedPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	case TypeTaskUpdated:
		var p TaskUpdatedPayload
		if err := unmarshalInto(payloadRaw, &p, t); err != nil {
			return nil, err
		}
		return &p, nil
	case TypeTaskStatusSet:
		var p TaskStatusSetPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	case TypeTaskClaimed:
		var p TaskClaimedPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	case TypeTaskNoted:
		var p TaskNotedPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	case TypeTaskSpecAttached:
		var p TaskSpecAttachedPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	case TypeTaskSuperseded:
		var p TaskSupersededPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	case TypeDepAdded:
		var p DepAddedPayload
		if err := unmarshalInto(payloadRaw, &p, t); err != nil {
			return nil, err
		}
		// Both the typed form with dep_type absent and the legacy flat
		// "blockers" list decode as "blocks" edges.
		if p.DepType == "" {
			p.DepType = DepBlocks
		}
		return &p, nil
	case TypeDepRemoved:
		var p DepRemovedPayload
		if err := unmarshalInto(payloadRaw, &p, t); err != nil {
			return nil, err
		}
		if p.DepType == "" {
			p.DepType = DepBlocks
		}
		return &p, nil
	case TypeLinkAdded:
		var p LinkAddedPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	case TypeLinkRemoved:
		var p LinkRemovedPayload
		return &p, unmarshalInto(payloadRaw, &p, t)
	default:
		return nil, tsqerr.Newf(tsqerr.CodeInvalidEventType, "unrecognized event type %q", t)
	}
}

func unmarshalInto(raw json.RawMessage, dst any, t Type) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return tsqerr.Wrap(tsqerr.CodeInvalidEvent, fmt.Sprintf("event %q payload malformed", t), err)
	}
	return nil
}

// New constructs a validated Record. payload's eventType() must match typ.
func New(eventID string, ts time.Time, actor string, typ Type, taskID string, payload Payload) (Record, error) {
	if payload.eventType() != typ {
		return Record{}, tsqerr.Newf(tsqerr.CodeInternal, "payload shape %T does not match event type %q", payload, typ)
	}
	if err := payload.validate(); err != nil {
		return Record{}, err
	}
	return Record{EventID: eventID, TS: ts, Actor: actor, Type: typ, TaskID: taskID, Payload: payload}, nil
}
