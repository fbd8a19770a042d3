package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user: not found")

// User is the slice of an account the order core needs. Credentials stay
// with the user-management component.
type User struct {
	ID       string
	Username string
	Email    string
	Address  string
	Admin    bool
}

// Directory resolves users by identifier.
type Directory interface {
	GetUserByID(ctx context.Context, id string) (User, error)
}
