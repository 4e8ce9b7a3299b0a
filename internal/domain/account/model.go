package account

import (
	"time"

	"github.com/google/uuid"
)

// Account roles. There is no admin role in the model; operator access goes
// through the database, not this API.
const (
	RoleDoctor  = "doctor"
	RoleNurse   = "nurse"
	RolePatient = "patient"
)

var validRoles = map[string]bool{
	RoleDoctor: true, RoleNurse: true, RolePatient: true,
}

// Account maps to the account table.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PublicUser is the projection returned to clients. It never carries
// password material.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

func (a *Account) Public() *PublicUser {
	return &PublicUser{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
}

var dashboardRoutes = map[string]string{
	RoleDoctor:  "/dashboard/doctor/",
	RoleNurse:   "/dashboard/nurse/",
	RolePatient: "/dashboard/patient/",
}

// DashboardRoute returns the post-login destination for a role. Unknown
// roles land on the generic dashboard.
func DashboardRoute(role string) string {
	if dest, ok := dashboardRoutes[role]; ok {
		return dest
	}
	return "/dashboard/"
}
