// Package linkprovider abstracts the multi-network binding helper that
// selects between Wi-Fi and cellular. The core treats link selection as
// an opaque collaborator; only DefaultNetID and OpenLinkSettings are
// consumed.
package linkprovider

import "context"

// Provider reports the active network and can prompt the user (or the
// OS) to change it.
type Provider interface {
	// DefaultNetID returns a non-negative identifier for the currently
	// active network. 0 denotes "unknown/none".
	DefaultNetID(ctx context.Context) (int, error)

	// OpenLinkSettings opens a system UI for the user to change the
	// active network (or is a no-op in headless mode). It returns
	// whether the prompt was actually shown.
	OpenLinkSettings(ctx context.Context) (bool, error)
}

// Headless is a best-effort Provider for environments with no
// interactive network settings UI: OpenLinkSettings never raises, it
// simply reports it did nothing, and DefaultNetID always reports the
// same fixed network id.
type Headless struct {
	NetID int
}

// NewHeadless creates a Headless provider reporting a fixed network id.
func NewHeadless(netID int) *Headless {
	return &Headless{NetID: netID}
}

func (h *Headless) DefaultNetID(ctx context.Context) (int, error) {
	return h.NetID, nil
}

func (h *Headless) OpenLinkSettings(ctx context.Context) (bool, error) {
	return false, nil
}
