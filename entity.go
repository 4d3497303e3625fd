package scribeq

import "time"

// Entity carries the timestamps common to all persisted scribeq records.
// Embed it in entity structs; stores maintain both fields.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the entity's UpdatedAt to now (UTC).
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
