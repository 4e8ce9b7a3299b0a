package patient

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gender codes.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

var validGenders = map[string]bool{
	GenderMale: true, GenderFemale: true, GenderOther: true,
}

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

// phonePattern accepts an optional leading + and country code 1, then 9-15 digits.
var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

const (
	patientIDPrefix = "PAT"
	dateLayout      = "2006-01-02"
)

// Patient maps to the patient table. PatientID is the business key, assigned
// once at creation and never recomputed.
type Patient struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	PatientID             string    `db:"patient_id" json:"patient_id"`
	FirstName             string    `db:"first_name" json:"first_name"`
	LastName              string    `db:"last_name" json:"last_name"`
	DateOfBirth           time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender                string    `db:"gender" json:"gender"`
	PhoneNumber           string    `db:"phone_number" json:"phone_number"`
	Email                 *string   `db:"email" json:"email,omitempty"`
	Address               string    `db:"address" json:"address"`
	EmergencyContactName  string    `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string    `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	BloodType             *string   `db:"blood_type" json:"blood_type,omitempty"`
	Allergies             *string   `db:"allergies" json:"allergies,omitempty"`
	MedicalHistory        *string   `db:"medical_history" json:"medical_history,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// Age returns whole years between dob and now, one less when the birthday
// has not yet occurred this year.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// NextPatientID derives the successor of the highest existing identifier for
// a year. An empty last starts the year at sequence 1. Sequences past 9999
// keep incrementing and simply render wider.
func NextPatientID(last string, year int) string {
	seq := 1
	prefix := fmt.Sprintf("%s%d", patientIDPrefix, year)
	if strings.HasPrefix(last, prefix) {
		if n, err := strconv.Atoi(last[len(prefix):]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// Detail is the full wire projection, used on retrieve and after writes.
type Detail struct {
	PatientID             string  `json:"patient_id"`
	FirstName             string  `json:"first_name"`
	LastName              string  `json:"last_name"`
	DateOfBirth           string  `json:"date_of_birth"`
	Age                   int     `json:"age"`
	Gender                string  `json:"gender"`
	PhoneNumber           string  `json:"phone_number"`
	Email                 *string `json:"email"`
	Address               string  `json:"address"`
	EmergencyContactName  string  `json:"emergency_contact_name"`
	EmergencyContactPhone string  `json:"emergency_contact_phone"`
	BloodType             *string `json:"blood_type"`
	Allergies             *string `json:"allergies"`
	MedicalHistory        *string `json:"medical_history"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

// Summary is the list projection.
type Summary struct {
	PatientID   string  `json:"patient_id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateOfBirth string  `json:"date_of_birth"`
	Gender      string  `json:"gender"`
	PhoneNumber string  `json:"phone_number"`
	Email       *string `json:"email"`
	CreatedAt   string  `json:"created_at"`
	Age         int     `json:"age"`
}

// ToDetail builds the full projection. Age is computed against now, never
// persisted.
func (p *Patient) ToDetail(now time.Time) *Detail {
	return &Detail{
		PatientID:             p.PatientID,
		FirstName:             p.FirstName,
		LastName:              p.LastName,
		DateOfBirth:           p.DateOfBirth.Format(dateLayout),
		Age:                   Age(p.DateOfBirth, now),
		Gender:                p.Gender,
		PhoneNumber:           p.PhoneNumber,
		Email:                 p.Email,
		Address:               p.Address,
		EmergencyContactName:  p.EmergencyContactName,
		EmergencyContactPhone: p.EmergencyContactPhone,
		BloodType:             p.BloodType,
		Allergies:             p.Allergies,
		MedicalHistory:        p.MedicalHistory,
		CreatedAt:             p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             p.UpdatedAt.Format(time.RFC3339),
	}
}

// ToSummary builds the list projection.
func (p *Patient) ToSummary(now time.Time) *Summary {
	return &Summary{
		PatientID:   p.PatientID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth.Format(dateLayout),
		Gender:      p.Gender,
		PhoneNumber: p.PhoneNumber,
		Email:       p.Email,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		Age:         Age(p.DateOfBirth, now),
	}
}

// ValidationErrors maps field names to messages. It satisfies error so
// services can return it through the usual error path.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Input carries the writable patient fields. patient_id, created_at and
// updated_at are server-assigned; values supplied by the caller are ignored
// because they are simply not part of this type.
type Input struct {
	FirstName             *string `json:"first_name"`
	LastName              *string `json:"last_name"`
	DateOfBirth           *string `json:"date_of_birth"`
	Gender                *string `json:"gender"`
	PhoneNumber           *string `json:"phone_number"`
	Email                 *string `json:"email"`
	Address               *string `json:"address"`
	EmergencyContactName  *string `json:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone"`
	BloodType             *string `json:"blood_type"`
	Allergies             *string `json:"allergies"`
	MedicalHistory        *string `json:"medical_history"`
}

// Validate checks the input. With partial set, absent fields are skipped so
// updates can send only what changed; otherwise every required field must be
// present. All failures are collected so the caller sees them at once.
func (in *Input) Validate(partial bool) ValidationErrors {
	errs := ValidationErrors{}

	requireString := func(field string, v *string) {
		if v == nil {
			if !partial {
				errs[field] = "this field is required"
			}
			return
		}
		if strings.TrimSpace(*v) == "" {
			errs[field] = "this field may not be blank"
		}
	}

	requireString("first_name", in.FirstName)
	requireString("last_name", in.LastName)
	requireString("address", in.Address)
	requireString("emergency_contact_name", in.EmergencyContactName)

	if in.DateOfBirth == nil {
		if !partial {
			errs["date_of_birth"] = "this field is required"
		}
	} else if _, err := time.Parse(dateLayout, *in.DateOfBirth); err != nil {
		errs["date_of_birth"] = "date must be in YYYY-MM-DD format"
	}

	if in.Gender == nil {
		if !partial {
			errs["gender"] = "this field is required"
		}
	} else if !validGenders[*in.Gender] {
		errs["gender"] = "gender must be one of M, F, O"
	}

	checkPhone := func(field string, v *string) {
		if v == nil {
			if !partial {
				errs[field] = "this field is required"
			}
			return
		}
		if !phonePattern.MatchString(*v) {
			errs[field] = "phone number must be entered in the format: '+999999999', up to 15 digits allowed"
		}
	}
	checkPhone("phone_number", in.PhoneNumber)
	checkPhone("emergency_contact_phone", in.EmergencyContactPhone)

	if in.Email != nil && *in.Email != "" {
		if _, err := mail.ParseAddress(*in.Email); err != nil {
			errs["email"] = "enter a valid email address"
		}
	}

	if in.BloodType != nil && *in.BloodType != "" && !validBloodTypes[*in.BloodType] {
		errs["blood_type"] = "blood type must be one of A+, A-, B+, B-, AB+, AB-, O+, O-"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Apply copies the set fields onto p. Empty optional strings clear the
// stored value.
func (in *Input) Apply(p *Patient) {
	if in.FirstName != nil {
		p.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		p.LastName = *in.LastName
	}
	if in.DateOfBirth != nil {
		dob, _ := time.Parse(dateLayout, *in.DateOfBirth)
		p.DateOfBirth = dob
	}
	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.PhoneNumber != nil {
		p.PhoneNumber = *in.PhoneNumber
	}
	if in.Email != nil {
		if *in.Email == "" {
			p.Email = nil
		} else {
			p.Email = in.Email
		}
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if in.EmergencyContactName != nil {
		p.EmergencyContactName = *in.EmergencyContactName
	}
	if in.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = *in.EmergencyContactPhone
	}
	if in.BloodType != nil {
		if *in.BloodType == "" {
			p.BloodType = nil
		} else {
			p.BloodType = in.BloodType
		}
	}
	if in.Allergies != nil {
		if *in.Allergies == "" {
			p.Allergies = nil
		} else {
			p.Allergies = in.Allergies
		}
	}
	if in.MedicalHistory != nil {
		if *in.MedicalHistory == "" {
			p.MedicalHistory = nil
		} else {
			p.MedicalHistory = in.MedicalHistory
		}
	}
}

// Stats holds the aggregate counters for the stats endpoint.
type Stats struct {
	TotalPatients  int `json:"total_patients"`
	MalePatients   int `json:"male_patients"`
	FemalePatients int `json:"female_patients"`
	OtherPatients  int `json:"other_patients"`
}
