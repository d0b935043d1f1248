package types

import "time"

// Fields is a JSON-compatible mapping of document fields.
type Fields map[string]any

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for key, value := range f {
		out[key] = value
	}
	return out
}

// Document is a single record in a collection. ID is assigned by the store
// and never changes after creation.
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Role is a user's access level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity describes the acting user.
type Identity struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Role        Role    `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// UserProfile is the users/{uid} document.
type UserProfile struct {
	ID        string    `json:"-"`
	Role      Role      `json:"role"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PhotoURL  *string   `json:"photoURL,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p UserProfile) Key() string       { return p.ID }
func (p *UserProfile) SetKey(id string) { p.ID = id }

// Account holds sign-in credentials for one user.
type Account struct {
	ID           string    `json:"-"`
	Email        string    `json:"email"`
	UserID       string    `json:"uid"`
	PasswordHash string    `json:"passwordHash"`
	Salt         string    `json:"salt"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (a Account) Key() string       { return a.ID }
func (a *Account) SetKey(id string) { a.ID = id }
