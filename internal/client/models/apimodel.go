// Package models defines client-side data models used by the amoCRM client:
// raw API records, ordered collections and the dirty-tracked ApiModel.
package models

import (
	"sort"

	"github.com/google/uuid"
)

// ApiModel is a mutable entity record with identity fields and a
// changed-field tracker.
//
// A field is changed while its value differs from the last persisted
// snapshot. The snapshot is committed only by MarkSaved, which the
// reconciliation step calls after the server acknowledged the model.
type ApiModel struct {
	entity    string
	id        int64
	requestID string
	queryHash string

	fields   map[string]any
	snapshot map[string]any
	changed  map[string]struct{}
	saved    bool
}

// NewApiModel builds an unsaved model for entity with a fresh request id.
// Initial fields are treated as changed so that they are submitted on add.
func NewApiModel(entity string, fields map[string]any) *ApiModel {
	m := &ApiModel{
		entity:    entity,
		requestID: uuid.NewString(),
		fields:    make(map[string]any, len(fields)),
		snapshot:  make(map[string]any),
		changed:   make(map[string]struct{}),
	}
	for k, v := range fields {
		m.Set(k, v)
	}
	return m
}

// FromRecord builds a saved model from a server record. Identity fields are
// lifted out of the record; every other key becomes a persisted field.
func FromRecord(entity string, r Record) *ApiModel {
	m := &ApiModel{
		entity:   entity,
		fields:   make(map[string]any, len(r)),
		snapshot: make(map[string]any, len(r)),
		changed:  make(map[string]struct{}),
	}
	for k, v := range r {
		switch k {
		case FieldID:
			m.id, _ = ToInt64(v)
		case FieldRequestID:
			m.requestID, _ = r.String(k)
		case FieldQueryHash:
			m.queryHash, _ = r.String(k)
		default:
			m.fields[k] = v
		}
	}
	m.MarkSaved()
	return m
}

func isIdentity(name string) bool {
	return name == FieldID || name == FieldRequestID || name == FieldQueryHash
}

// Entity returns the entity type name the model belongs to.
func (m *ApiModel) Entity() string { return m.entity }

// ID returns the server identity, 0 while unassigned.
func (m *ApiModel) ID() int64 { return m.id }

// HasID reports whether a server identity is set.
func (m *ApiModel) HasID() bool { return m.id != 0 }

// RequestID returns the client-generated correlation token.
func (m *ApiModel) RequestID() string { return m.requestID }

// QueryHash returns the last server-issued version token.
func (m *ApiModel) QueryHash() string { return m.queryHash }

// Saved reports whether the model was acknowledged by the server and has no
// pending changes since.
func (m *ApiModel) Saved() bool { return m.saved && len(m.changed) == 0 }

// SetID assigns the server identity.
func (m *ApiModel) SetID(id int64) { m.id = id }

// SetQueryHash assigns the server-issued version token.
func (m *ApiModel) SetQueryHash(hash string) { m.queryHash = hash }

// Get resolves identity names first and then regular fields.
func (m *ApiModel) Get(key string) (any, bool) {
	switch key {
	case FieldID:
		if m.id == 0 {
			return nil, false
		}
		return m.id, true
	case FieldRequestID:
		if m.requestID == "" {
			return nil, false
		}
		return m.requestID, true
	case FieldQueryHash:
		if m.queryHash == "" {
			return nil, false
		}
		return m.queryHash, true
	}
	v, ok := m.fields[key]
	return v, ok
}

// Field returns the value of a regular field or nil.
func (m *ApiModel) Field(name string) any {
	return m.fields[name]
}

// Set writes a regular field. Identity names are ignored; they are only
// assigned through SetID/SetQueryHash.
func (m *ApiModel) Set(name string, value any) {
	if isIdentity(name) {
		return
	}
	m.fields[name] = value
	prev, known := m.snapshot[name]
	if known && SameValue(prev, value) {
		delete(m.changed, name)
		return
	}
	m.changed[name] = struct{}{}
}

// HasChanged reports whether name is in the changed-set.
func (m *ApiModel) HasChanged(name string) bool {
	_, ok := m.changed[name]
	return ok
}

// Changed returns the changed field names in sorted order.
func (m *ApiModel) Changed() []string {
	out := make([]string, 0, len(m.changed))
	for k := range m.changed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ChangedData returns the current values of all changed fields.
func (m *ApiModel) ChangedData() Record {
	out := make(Record, len(m.changed))
	for k := range m.changed {
		out[k] = m.fields[k]
	}
	return out
}

// MarkSaved commits the current field values as the persisted snapshot and
// clears the changed-set.
func (m *ApiModel) MarkSaved() {
	m.snapshot = make(map[string]any, len(m.fields))
	for k, v := range m.fields {
		m.snapshot[k] = v
	}
	m.changed = make(map[string]struct{})
	m.saved = true
}

// Raw returns identity and fields as a single record.
func (m *ApiModel) Raw() Record {
	out := make(Record, len(m.fields)+3)
	for k, v := range m.fields {
		out[k] = v
	}
	if m.id != 0 {
		out[FieldID] = m.id
	}
	if m.requestID != "" {
		out[FieldRequestID] = m.requestID
	}
	if m.queryHash != "" {
		out[FieldQueryHash] = m.queryHash
	}
	return out
}
