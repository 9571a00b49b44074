package models

import "github.com/google/uuid"

// assignID fills an empty primary key. Keys are generated client-side so the
// same models work on postgres and on the sqlite test database.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
