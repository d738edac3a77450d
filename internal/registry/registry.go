// Package registry lists the host and rule identities known to the
// persistent store that backs a client installation.
//
// ListHosts and ListRules keep the historical contract: any store
// failure, and an empty result, come back as a single sentinel entry.
// Hosts and Rules return typed errors for callers that would rather
// decide for themselves.
package registry

import (
	"context"
	"errors"

	ncerr "r66client/internal/errors"
	"r66client/util"
)

// Sentinels returned in place of an empty or failed listing.
const (
	NoHostFound = "NoHostFound"
	NoRuleFound = "NoRuleFound"
)

// ErrNoStore is returned by a Lookup that has no store configured.
var ErrNoStore = errors.New("no registry configured")

// Store reads identities from a persistent backend.
type Store interface {
	Hosts(ctx context.Context) ([]string, error)
	Rules(ctx context.Context) ([]string, error)
	Close() error
}

// Lookup queries a Store.  A nil store is allowed and fails every
// query with ErrNoStore.
type Lookup struct {
	store  Store
	logger *util.Logger
}

// New returns a Lookup over store.
// A nil logger discards warnings.
func New(store Store, logger *util.Logger) *Lookup {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Lookup{store: store, logger: logger}
}

// Hosts returns host identities in store order.
func (l *Lookup) Hosts(ctx context.Context) ([]string, error) {
	if l.store == nil {
		return nil, &ncerr.RegistryError{Op: "hosts", Err: ErrNoStore}
	}
	ids, err := l.store.Hosts(ctx)
	if err != nil {
		return nil, &ncerr.RegistryError{Op: "hosts", Err: err}
	}
	return ids, nil
}

// Rules returns rule identities in store order.
func (l *Lookup) Rules(ctx context.Context) ([]string, error) {
	if l.store == nil {
		return nil, &ncerr.RegistryError{Op: "rules", Err: ErrNoStore}
	}
	ids, err := l.store.Rules(ctx)
	if err != nil {
		return nil, &ncerr.RegistryError{Op: "rules", Err: err}
	}
	return ids, nil
}

// ListHosts returns the host identities, or [NoHostFound] alone.
func (l *Lookup) ListHosts(ctx context.Context) []string {
	ids, err := l.Hosts(ctx)
	return l.orSentinel(ids, err, NoHostFound)
}

// ListRules returns the rule identities, or [NoRuleFound] alone.
func (l *Lookup) ListRules(ctx context.Context) []string {
	ids, err := l.Rules(ctx)
	return l.orSentinel(ids, err, NoRuleFound)
}

func (l *Lookup) orSentinel(ids []string, err error, sentinel string) []string {
	if err != nil {
		l.logger.Warn("%v", err)
		return []string{sentinel}
	}
	if len(ids) == 0 {
		return []string{sentinel}
	}
	return ids
}

// Close releases the store.  Safe on a Lookup without one.
func (l *Lookup) Close() error {
	if l == nil || l.store == nil {
		return nil
	}
	return l.store.Close()
}
