package runaccess

import (
	"fmt"

	"inkwell/internal/ipc"
	"inkwell/internal/runs"
	"inkwell/internal/template"
)

// Session represents a run access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to direct
// store access. The store opener also supplies the template registry so
// offline submissions validate against the same templates the daemon uses.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*runs.Store, *template.Registry, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				close:  client.Close,
			}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open run store: no store opener configured")
	}
	store, templates, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open run store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store, templates),
		close:  store.Close,
	}, nil
}
