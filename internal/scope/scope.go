// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scope applies bound overrides to a network as reversible,
// nestable scopes. Closing a scope restores exactly the bounds captured
// when it opened.
package scope

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

var (
	// ErrOutOfOrder is returned when closing a scope that is not the innermost open one.
	ErrOutOfOrder = errors.New("scope: closed out of order")

	// ErrRestoreFailed is returned when captured bounds could not be written back.
	ErrRestoreFailed = errors.New("scope: restoring bounds failed")
)

// Override replaces a reaction's bounds for the lifetime of a scope.
type Override struct {
	Lower float64
	Upper float64
}

// Knockout is the override that blocks a reaction in both directions.
var Knockout = Override{}

// Manager tracks the open scopes of one network. It is not safe for
// concurrent use; give each goroutine its own network and manager.
type Manager struct {
	net   model.Network
	stack []*Scope
}

// NewManager returns a manager for net.
func NewManager(net model.Network) *Manager {
	return &Manager{net: net}
}

// Network returns the managed network.
func (m *Manager) Network() model.Network { return m.net }

// Depth returns the number of open scopes.
func (m *Manager) Depth() int { return len(m.stack) }

type saved struct {
	reaction string
	lower    float64
	upper    float64
}

// Scope is an applied set of overrides.
type Scope struct {
	m      *Manager
	saved  []saved
	closed bool
}

// Reactions returns the reactions the scope overrides, in the order applied.
func (s *Scope) Reactions() []string {
	out := make([]string, len(s.saved))
	for i, sv := range s.saved {
		out[i] = sv.reaction
	}
	return out
}

// Open captures the bounds of every reaction in overrides and applies the
// overrides in sorted reaction order. If any reaction is unknown or any
// override is rejected, edits already made are reverted and no scope opens.
func (m *Manager) Open(overrides map[string]Override) (*Scope, error) {
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	s := &Scope{m: m, saved: make([]saved, 0, len(ids))}
	for _, id := range ids {
		lo, hi, err := m.net.Bounds(id)
		if err != nil {
			return nil, s.abort(fmt.Errorf("opening scope: %w", err))
		}
		o := overrides[id]
		if err := m.net.SetBounds(id, o.Lower, o.Upper); err != nil {
			return nil, s.abort(fmt.Errorf("opening scope: %w", err))
		}
		s.saved = append(s.saved, saved{reaction: id, lower: lo, upper: hi})
	}

	m.stack = append(m.stack, s)
	return s, nil
}

// Knockout opens a scope that blocks every reaction the candidate removes:
// the targets themselves for a reaction candidate, or the reactions whose
// gene rule fails for a gene candidate.
func (m *Manager) Knockout(c types.Candidate) (*Scope, error) {
	var reactions []string
	switch c.Kind {
	case types.TargetReaction:
		reactions = c.Targets
	case types.TargetGene:
		disabled, err := m.net.DisabledReactions(c.Targets)
		if err != nil {
			return nil, fmt.Errorf("knockout %s: %w", c, err)
		}
		reactions = disabled
	default:
		return nil, fmt.Errorf("knockout %s: unknown target kind %q", c, c.Kind)
	}

	overrides := make(map[string]Override, len(reactions))
	for _, rx := range reactions {
		overrides[rx] = Knockout
	}
	return m.Open(overrides)
}

// abort reverts partially applied edits of a scope that never opened.
func (s *Scope) abort(cause error) error {
	if err := s.restore(); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (s *Scope) restore() error {
	var errs []error
	for i := len(s.saved) - 1; i >= 0; i-- {
		sv := s.saved[i]
		if err := s.m.net.SetBounds(sv.reaction, sv.lower, sv.upper); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrRestoreFailed, sv.reaction, err))
		}
	}
	return errors.Join(errs...)
}

// Close restores the captured bounds in reverse order. Closing twice is a
// no-op. Closing a scope that is not innermost returns ErrOutOfOrder and
// changes nothing.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	stack := s.m.stack
	if len(stack) == 0 || stack[len(stack)-1] != s {
		return ErrOutOfOrder
	}

	s.closed = true
	s.m.stack = stack[:len(stack)-1]
	return s.restore()
}
