package flatfile

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-bookstore/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/filestore"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
)

// UserDirectory is a read-only view of the users file, loaded once.
type UserDirectory struct {
	users map[string]user.User
}

func LoadUserDirectory(ctx context.Context, lines filestore.LineStore, tel observability.Observability) (*UserDirectory, error) {
	raw, err := newFile(lines, "", tel).read(ctx)
	if err != nil {
		return nil, err
	}
	d := &UserDirectory{users: make(map[string]user.User, len(raw))}
	for i, line := range raw {
		u, err := DecodeUser(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		d.users[u.ID] = u
	}
	return d, nil
}

func (d *UserDirectory) GetUserByID(_ context.Context, id string) (user.User, error) {
	u, ok := d.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("%w: %s", user.ErrNotFound, id)
	}
	return u, nil
}
