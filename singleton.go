package keycloaksession

import (
	"context"
	"errors"
	"sync"

	log "github.com/hashicorp/go-hclog"

	"github.com/sessionware/keycloak-session/adapter"
)

var (
	// ErrNotInstalled is returned by [Instance] before any [Install] call.
	ErrNotInstalled = errors.New("keycloaksession: not installed, call Install first")

	// ErrNoAdapter signals an operation on a facade without an adapter
	// handle. This is a usage error, not an adapter failure, and is never
	// mirrored into the session state.
	ErrNoAdapter = errors.New("keycloaksession: no adapter handle")
)

// Options configure the shared facade on first [Install].
type Options struct {
	// Config is the keycloak connection configuration.
	Config adapter.Config

	// Factory creates the adapter. Defaults to the gocloak-backed
	// implementation.
	Factory adapter.FactoryFunc

	// Callbacks receive forwarded adapter events.
	Callbacks Callbacks

	// Logger defaults to a null logger.
	Logger log.Logger

	// InitOptions, when set, make Install run the initial handshake
	// before returning.
	InitOptions *adapter.InitOptions
}

var (
	sharedMu sync.Mutex
	shared   *Facade
)

// Install constructs the process-wide facade on first call and returns it.
// Later calls return the existing handle unchanged; their options are
// ignored (the first configuration wins).
//
// When Options.InitOptions is set the handshake runs as part of Install; a
// handshake failure is returned together with the (still usable) facade.
func Install(ctx context.Context, opts Options) (*Facade, error) {
	sharedMu.Lock()
	if shared != nil {
		existing := shared
		sharedMu.Unlock()
		existing.logger.Warn("Install called more than once, keeping first configuration")
		return existing, nil
	}

	f, err := newFacade(ctx, opts)
	if err != nil {
		sharedMu.Unlock()
		return nil, err
	}
	shared = f
	sharedMu.Unlock()

	if opts.InitOptions != nil {
		if _, err := f.Init(ctx, *opts.InitOptions); err != nil {
			return f, err
		}
	}
	return f, nil
}

// Instance returns the shared facade installed by [Install], or
// [ErrNotInstalled] if construction never happened.
func Instance() (*Facade, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		return nil, ErrNotInstalled
	}
	return shared, nil
}

// Reset drops the shared handle so the next [Install] constructs a fresh
// facade. Intended for tests.
func Reset() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = nil
}
