package domain

import "time"

// Role is the access level recorded on a user. Only RoleUser and RoleAdmin
// are ever persisted.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MaxPasswordBytes is the longest plaintext the credential hasher accepts.
const MaxPasswordBytes = 72

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User models an identity record as held by the store.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the outward-facing projection of a User. It has no field for the
// password hash, so it is safe to render in any response.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Role      Role      `json:"role"`
}

// Profile projects u to its public view.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Role:      u.Role,
	}
}
