package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caredesk/caredesk/internal/platform/db"
)

// maxCreateAttempts bounds the retry loop around patient_id assignment.
// A retry only happens when a concurrent create wins the same sequence
// number, which the unique constraint turns into a 23505.
const maxCreateAttempts = 3

const uniqueViolation = "23505"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, patient_id, first_name, last_name, date_of_birth, gender,
	phone_number, email, address, emergency_contact_name, emergency_contact_phone,
	blood_type, allergies, medical_history, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	return createWithRetry(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			return r.insert(db.WithTx(ctx, tx), p)
		})
	})
}

// createWithRetry runs attempt until it succeeds or a unique violation has
// been reported maxCreateAttempts times. A 23505 means a concurrent create
// committed the same sequence number first; the next attempt re-reads the
// maximum and computes a fresh one. Any other error returns immediately.
func createWithRetry(ctx context.Context, attempt func(context.Context) error) error {
	var lastErr error
	for i := 0; i < maxCreateAttempts; i++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("create patient: id conflict after %d attempts: %w", maxCreateAttempts, lastErr)
}

// insert reads the highest identifier for the current year and inserts with
// the successor. Runs inside the create transaction.
func (r *repoPG) insert(ctx context.Context, p *Patient) error {
	year := time.Now().Year()

	var last string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id FROM patient
		WHERE patient_id LIKE $1
		ORDER BY patient_id DESC LIMIT 1`,
		fmt.Sprintf("PAT%d%%", year),
	).Scan(&last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read max patient_id: %w", err)
	}

	p.ID = uuid.New()
	p.PatientID = NextPatientID(last, year)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (
			id, patient_id, first_name, last_name, date_of_birth, gender,
			phone_number, email, address, emergency_contact_name, emergency_contact_phone,
			blood_type, allergies, medical_history, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.PatientID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.PhoneNumber, p.Email, p.Address, p.EmergencyContactName, p.EmergencyContactPhone,
		p.BloodType, p.Allergies, p.MedicalHistory, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByPatientID(ctx context.Context, patientID string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE patient_id = $1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			first_name=$2, last_name=$3, date_of_birth=$4, gender=$5,
			phone_number=$6, email=$7, address=$8,
			emergency_contact_name=$9, emergency_contact_phone=$10,
			blood_type=$11, allergies=$12, medical_history=$13, updated_at=$14
		WHERE patient_id = $1`,
		p.PatientID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.PhoneNumber, p.Email, p.Address,
		p.EmergencyContactName, p.EmergencyContactPhone,
		p.BloodType, p.Allergies, p.MedicalHistory, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, patientID string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE patient_id = $1`, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, search string) ([]*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM patient`
	var args []interface{}
	if search != "" {
		query += ` WHERE first_name ILIKE $1 ESCAPE '\' OR last_name ILIKE $1 ESCAPE '\' OR patient_id ILIKE $1 ESCAPE '\' OR phone_number ILIKE $1 ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatientRows(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE gender = 'M'),
			COUNT(*) FILTER (WHERE gender = 'F'),
			COUNT(*) FILTER (WHERE gender = 'O')
		FROM patient`,
	).Scan(&s.TotalPatients, &s.MalePatients, &s.FemalePatients, &s.OtherPatients)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// escapeLike neutralizes LIKE metacharacters so a search term matches
// literally. Without it a term like "_" is a single-character wildcard and
// matches every patient.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.PhoneNumber, &p.Email, &p.Address, &p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.BloodType, &p.Allergies, &p.MedicalHistory, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPatientRows(rows pgx.Rows) (*Patient, error) {
	return scanPatient(rows)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
