package terminal

import (
	"context"

	"github.com/GriffinCanCode/stubterm/backend/internal/shared/id"
)

// RunOnce runs command in dir without a session: no history, no tracked
// directory, no staged environment. An empty dir uses the stub's own.
func RunOnce(ctx context.Context, link Exchanger, dialect Dialect, dir, command string) (string, error) {
	if dialect == nil {
		dialect = Posix{}
	}
	sentinel := id.NewSentinel()
	raw, err := link.Exchange(ctx, dialect.Frame(dir, nil, command, sentinel))
	if err != nil {
		return "", err
	}
	body, ok := frameBody(string(raw), sentinel)
	if !ok {
		return "", errFrameNotFound
	}
	return body, nil
}
