package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Filter scopes List to one doctor or one patient. Empty fields match all.
type Filter struct {
	DoctorID  string
	PatientID string
}

// Repository is the durable appointment collection. Writes always replace a
// whole record.
type Repository interface {
	Insert(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)

	// Replace writes a if its Version matches the stored one and bumps
	// a.Version. ErrVersionConflict when the record moved on.
	Replace(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error

	TokenExists(ctx context.Context, doctorID, token string) (bool, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
