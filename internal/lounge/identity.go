package lounge

import (
	"context"

	"github.com/monsters-club/lounge/internal/types"
)

// IdentitySource resolves the acting user. It returns nil with no error
// when nobody is signed in.
type IdentitySource interface {
	Current(ctx context.Context) (*types.Identity, error)
}

// IdentityFunc adapts a function to IdentitySource.
type IdentityFunc func(ctx context.Context) (*types.Identity, error)

func (f IdentityFunc) Current(ctx context.Context) (*types.Identity, error) {
	return f(ctx)
}

// Static always returns the same identity. A nil identity means signed out.
func Static(identity *types.Identity) IdentitySource {
	return IdentityFunc(func(context.Context) (*types.Identity, error) {
		if identity == nil {
			return nil, nil
		}
		copied := *identity
		return &copied, nil
	})
}
