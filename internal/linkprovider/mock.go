package linkprovider

import (
	"context"
	"sync"
)

// Mock is a test/simulation Provider whose network id flips to a new
// value after a configurable number of OpenLinkSettings calls, modeling
// a user who eventually switches links when prompted.
type Mock struct {
	mu sync.Mutex

	netID       int
	switchAfter int
	opens       int
	switched    bool
}

// NewMock creates a Mock starting on startNetID that flips to a
// different network id after switchAfter calls to OpenLinkSettings
// (switchAfter <= 0 means "never switches").
func NewMock(startNetID, switchAfter int) *Mock {
	return &Mock{netID: startNetID, switchAfter: switchAfter}
}

func (m *Mock) DefaultNetID(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.netID, nil
}

func (m *Mock) OpenLinkSettings(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens++
	if m.switchAfter > 0 && m.opens >= m.switchAfter && !m.switched {
		m.netID++
		m.switched = true
	}
	return true, nil
}

// Opens reports how many times OpenLinkSettings has been called.
func (m *Mock) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}
