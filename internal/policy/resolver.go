// Package policy implements C13, the connection policy resolver
// (spec.md §4.13), grounded directly on the original implementation's
// ResolveConnectionPolicy use case (resolve_connection_policy.rs).
package policy

import (
	"errors"
	"fmt"

	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/trust"
)

// Protocol names a connection protocol class.
type Protocol int

const (
	ProtocolPairing Protocol = iota
	ProtocolBusiness
)

// Allowed is the set of protocols a peer may use.
type Allowed struct {
	protocols map[Protocol]bool
}

func allowedFor(state ports.PairingState) Allowed {
	if state == ports.PairingStateTrusted {
		return Allowed{protocols: map[Protocol]bool{ProtocolPairing: true, ProtocolBusiness: true}}
	}
	return Allowed{protocols: map[Protocol]bool{ProtocolPairing: true}}
}

// Allows reports whether p is permitted.
func (a Allowed) Allows(p Protocol) bool { return a.protocols[p] }

// Resolved is the outcome of resolving a peer's connection policy.
type Resolved struct {
	PairingState ports.PairingState
	Allowed      Allowed
}

// ErrRepository distinguishes a repository failure from a legitimate
// "unknown peer" result, so callers never silently admit a peer during a
// database outage (spec.md §4.13).
var ErrRepository = errors.New("policy: repository error")

// Resolver resolves a ResolvedConnectionPolicy for a peer_id.
type Resolver struct {
	repo trust.Repository
}

// NewResolver wires a Resolver over a trust.Repository.
func NewResolver(repo trust.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveForPeer implements C13: Trusted -> {Pairing, Business}; Pending
// or unknown -> {Pairing} only. A repository lookup failure (other than
// "not found") is surfaced as ErrRepository, not as an unknown peer.
func (r *Resolver) ResolveForPeer(peerID ids.PeerId) (Resolved, error) {
	device, err := r.repo.GetByPeerID(peerID)
	switch {
	case err == nil:
		return Resolved{PairingState: device.State, Allowed: allowedFor(device.State)}, nil
	case errors.Is(err, trust.ErrNotFound):
		return Resolved{PairingState: ports.PairingStatePending, Allowed: allowedFor(ports.PairingStatePending)}, nil
	default:
		return Resolved{}, fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
