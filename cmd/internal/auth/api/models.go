package api

import (
	"time"

	"campus/cmd/identity"
)

// loginRequest also accepts the short form {id, pass}. An id containing '@'
// is an email, anything else a roll number.
type loginRequest struct {
	Email      *string `json:"email"`
	RollNumber *string `json:"roll_number"`
	ID         *string `json:"id"`
	Password   string  `json:"password"`
	Pass       string  `json:"pass"`
}

type createUserRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	RollNumber *string `json:"roll_number"`
	Password   string  `json:"password"`
	Role       string  `json:"role"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	RollNumber *string   `json:"roll_number,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

type loginResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type createUserResponse struct {
	User userResponse `json:"user"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

// toUserResponse never exposes the credential hash.
func toUserResponse(u identity.Identity) userResponse {
	return userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		RollNumber: u.RollNumber,
		Role:       string(u.Role),
		CreatedAt:  u.CreatedAt,
	}
}
