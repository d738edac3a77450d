package core

import (
	"context"
	"fmt"
	"io"

	"r66client/internal/registry"
)

// ListMode prints the host or rule identities known to the registry.
// An unavailable or empty registry prints its sentinel.
type ListMode struct {
	Registry *registry.Lookup
	Rules    bool
	Out      io.Writer
}

// Run prints one identity per line.
func (m *ListMode) Run(ctx context.Context) error {
	var ids []string
	if m.Rules {
		ids = m.Registry.ListRules(ctx)
	} else {
		ids = m.Registry.ListHosts(ctx)
	}
	for _, id := range ids {
		fmt.Fprintln(m.Out, id)
	}
	return nil
}
