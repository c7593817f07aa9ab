package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/wireproto"
)

func unmarshalPayload(env wireproto.Envelope, v any) error {
	return json.Unmarshal(env.Payload, v)
}

// ErrPeerUnknown is returned by Send when no address has been registered
// for peerID via AddPeer and no inbound connection from it exists yet.
var ErrPeerUnknown = errors.New("transport: peer address unknown")

// sendCapacity bounds the per-connection outbound buffer, mirroring the
// teacher's tcppeer.Peer.sendCh (capacity 64): a slow peer drops rather
// than blocking the sender (spec.md's transport is best-effort per peer).
const sendCapacity = 64

type outbound struct {
	fc     *frameConn
	sendCh chan []byte
}

// TCP implements ports.TransportPort over TLS-wrapped TCP connections,
// framed as newline-delimited wireproto.Envelope lines (grounded on
// internal/tcppeer.Peer's accept/serve lifecycle).
type TCP struct {
	localPeerID ids.PeerId
	tlsServer   *tls.Config
	tlsClient   *tls.Config

	mu        sync.Mutex
	addrs     map[ids.PeerId]string
	conns     map[ids.PeerId]*outbound
	listener  net.Listener
	inbound   chan ports.InboundEnvelope
	closeOnce sync.Once
	closed    chan struct{}
}

// NewTCP wires a TCP transport identified as localPeerID, using serverCfg
// to accept connections and clientCfg to dial out.
func NewTCP(localPeerID ids.PeerId, serverCfg, clientCfg *tls.Config) *TCP {
	return &TCP{
		localPeerID: localPeerID,
		tlsServer:   serverCfg,
		tlsClient:   clientCfg,
		addrs:       make(map[ids.PeerId]string),
		conns:       make(map[ids.PeerId]*outbound),
		inbound:     make(chan ports.InboundEnvelope, 256),
		closed:      make(chan struct{}),
	}
}

// AddPeer registers addr as the dial target for peerID, so a future Send
// can open a connection on demand.
func (t *TCP) AddPeer(peerID ids.PeerId, addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addrs[peerID] = addr
}

// Listen accepts inbound TLS connections on addr until ctx is cancelled
// (spec.md §5 cancellation). The remote peer identity is learned from the
// first envelope it sends that names one, since the TCP/TLS layer only authenticates the
// channel, not the peer id.
func (t *TCP) Listen(ctx context.Context, addr string) error {
	ln, err := tls.Listen("tcp", addr, t.tlsServer)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					slog.Error("transport: accept failed", "error", err)
					return
				}
			}
			go t.serveInbound(conn)
		}
	}()
	return nil
}

func (t *TCP) serveInbound(conn net.Conn) {
	fc := newFrameConn(conn)
	defer fc.Close()

	var peerID ids.PeerId
	for {
		raw, err := fc.readLine()
		if err != nil {
			if peerID != "" {
				t.dropConn(peerID)
			}
			return
		}
		env, err := wireproto.Decode(raw)
		if err != nil {
			slog.Warn("transport: dropping malformed envelope", "error", err)
			continue
		}
		if peerID == "" {
			peerID = t.identifyFromEnvelope(env)
			if peerID != "" {
				t.registerOutbound(peerID, fc)
			}
		}
		select {
		case t.inbound <- ports.InboundEnvelope{PeerID: peerID, Env: ports.WireEnvelope{Kind: string(env.Kind), Bytes: raw}}:
		default:
			slog.Warn("transport: inbound queue full, dropping envelope", "peer_id", string(peerID))
		}
	}
}

// identifyFromEnvelope extracts the sender's peer id from the payloads
// that carry one (ClipboardMessage, PairingRequest). serveInbound calls it
// on each envelope until one names a peer; envelopes received before
// that are delivered with an empty PeerID.
func (t *TCP) identifyFromEnvelope(env wireproto.Envelope) ids.PeerId {
	switch env.Kind {
	case wireproto.KindClipboardMessage:
		if msg, err := env.UnmarshalClipboardMessage(); err == nil {
			return ids.PeerId(msg.OriginPeerID)
		}
	case wireproto.KindPairingRequest:
		var req wireproto.PairingRequest
		if err := unmarshalPayload(env, &req); err == nil {
			return ids.PeerId(req.PeerID)
		}
	}
	return ""
}

func (t *TCP) registerOutbound(peerID ids.PeerId, fc *frameConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.conns[peerID]; exists {
		return
	}
	ob := &outbound{fc: fc, sendCh: make(chan []byte, sendCapacity)}
	t.conns[peerID] = ob
	go t.writeLoop(ob)
}

func (t *TCP) writeLoop(ob *outbound) {
	for raw := range ob.sendCh {
		if err := ob.fc.writeLine(raw); err != nil {
			slog.Error("transport: write failed", "error", err)
			ob.fc.Close()
			return
		}
	}
}

func (t *TCP) dropConn(peerID ids.PeerId) {
	t.mu.Lock()
	ob, ok := t.conns[peerID]
	if ok {
		delete(t.conns, peerID)
	}
	t.mu.Unlock()
	if ok {
		close(ob.sendCh)
	}
}

// dial returns an existing or freshly-dialed outbound connection to
// peerID. Caller must not hold t.mu.
func (t *TCP) dial(ctx context.Context, peerID ids.PeerId) (*outbound, error) {
	t.mu.Lock()
	if ob, ok := t.conns[peerID]; ok {
		t.mu.Unlock()
		return ob, nil
	}
	addr, ok := t.addrs[peerID]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerUnknown, peerID)
	}

	var d tls.Dialer
	d.Config = t.tlsClient
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	fc := newFrameConn(conn)
	ob := &outbound{fc: fc, sendCh: make(chan []byte, sendCapacity)}

	t.mu.Lock()
	if existing, ok := t.conns[peerID]; ok {
		t.mu.Unlock()
		fc.Close()
		return existing, nil
	}
	t.conns[peerID] = ob
	t.mu.Unlock()

	go t.writeLoop(ob)
	go t.readInboundFromDialed(peerID, fc)
	return ob, nil
}

func (t *TCP) readInboundFromDialed(peerID ids.PeerId, fc *frameConn) {
	defer t.dropConn(peerID)
	for {
		raw, err := fc.readLine()
		if err != nil {
			return
		}
		env, err := wireproto.Decode(raw)
		if err != nil {
			slog.Warn("transport: dropping malformed envelope", "error", err)
			continue
		}
		select {
		case t.inbound <- ports.InboundEnvelope{PeerID: peerID, Env: ports.WireEnvelope{Kind: string(env.Kind), Bytes: raw}}:
		default:
			slog.Warn("transport: inbound queue full, dropping envelope", "peer_id", string(peerID))
		}
	}
}

// Send delivers env to peerID, dialing a fresh connection if none exists.
func (t *TCP) Send(ctx context.Context, peerID ids.PeerId, env ports.WireEnvelope) error {
	ob, err := t.dial(ctx, peerID)
	if err != nil {
		return err
	}
	select {
	case ob.sendCh <- env.Bytes:
		return nil
	default:
		return fmt.Errorf("transport: send queue full for peer %s", peerID)
	}
}

// Receive returns the inbound envelope stream.
func (t *TCP) Receive() <-chan ports.InboundEnvelope {
	return t.inbound
}

// Close closes the listener and every open connection.
func (t *TCP) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		if t.listener != nil {
			err = t.listener.Close()
		}
		for peerID, ob := range t.conns {
			ob.fc.Close()
			close(ob.sendCh)
			delete(t.conns, peerID)
		}
		t.mu.Unlock()
	})
	return err
}
