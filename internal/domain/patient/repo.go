package patient

import (
	"context"
	"errors"
)

// ErrNotFound reports an unknown patient_id.
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	// Create assigns PatientID, CreatedAt and UpdatedAt and inserts the row.
	// The identifier assignment and insert are atomic with respect to
	// concurrent creates.
	Create(ctx context.Context, p *Patient) error
	GetByPatientID(ctx context.Context, patientID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, patientID string) error
	// List returns patients most recently created first, optionally filtered
	// by a case-insensitive substring over first name, last name, patient_id
	// or phone number.
	List(ctx context.Context, search string) ([]*Patient, error)
	Stats(ctx context.Context) (*Stats, error)
}
