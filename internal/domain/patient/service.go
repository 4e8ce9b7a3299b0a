package patient

import (
	"context"
	"time"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates the full input and persists a new patient. Validation
// failures return the per-field map and nothing is persisted.
func (s *Service) Create(ctx context.Context, in *Input) (*Patient, error) {
	if errs := in.Validate(false); errs != nil {
		return nil, errs
	}

	var p Patient
	in.Apply(&p)
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, patientID string) (*Patient, error) {
	return s.repo.GetByPatientID(ctx, patientID)
}

// Update applies a partial field set. Only supplied fields are validated and
// changed; patient_id stays immutable.
func (s *Service) Update(ctx context.Context, patientID string, in *Input) (*Patient, error) {
	if errs := in.Validate(true); errs != nil {
		return nil, errs
	}

	p, err := s.repo.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	in.Apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, patientID string) error {
	return s.repo.Delete(ctx, patientID)
}

func (s *Service) List(ctx context.Context, search string) ([]*Patient, error) {
	return s.repo.List(ctx, search)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// Summaries projects a patient list for the list endpoint.
func Summaries(patients []*Patient, now time.Time) []*Summary {
	out := make([]*Summary, 0, len(patients))
	for _, p := range patients {
		out = append(out, p.ToSummary(now))
	}
	return out
}
