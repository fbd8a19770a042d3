package memory

import "context"

// Snapshotter persists the complete record set after a mutation. A nil
// Snapshotter keeps the repository purely in memory.
type Snapshotter[T any] interface {
	Save(ctx context.Context, items []T) error
}
