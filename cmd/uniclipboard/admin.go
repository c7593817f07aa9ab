package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ipc"
	"go.klb.dev/uniclipboard/internal/pairing"
	"go.klb.dev/uniclipboard/internal/ports"
)

// adminLoop accepts connections on the admin socket and serves one Request
// per connection, mirroring the teacher's one-RPC-per-dial IPC channel.
func adminLoop(ctx context.Context, ln net.Listener, d *daemon) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				slog.Error("admin socket accept failed", "error", err)
				return
			}
		}
		go d.serve(conn)
	}
}

func (d *daemon) serve(conn net.Conn) {
	defer conn.Close()
	req, err := ipc.ReadRequest(conn)
	if err != nil {
		return
	}
	resp := d.dispatch(req)
	if err := ipc.WriteResponse(conn, resp); err != nil {
		slog.Warn("admin response write failed", "command", req.Command, "error", err)
	}
}

func (d *daemon) dispatch(req ipc.Request) ipc.Response {
	switch req.Command {
	case "pair":
		return d.handlePair(req.Args)
	case "accept":
		return d.handleDecision(req.Args, pairing.EventUserAccepted)
	case "reject":
		return d.handleDecision(req.Args, pairing.EventUserRejected)
	case "confirm_pin":
		return d.handlePinDecision(req.Args, true)
	case "reject_pin":
		return d.handlePinDecision(req.Args, false)
	case "status":
		return d.handleStatus()
	case "devices":
		return d.handleDevices()
	case "copy":
		return d.handleCopy(req.Args)
	case "paste":
		return d.handlePaste()
	default:
		return errResponse(fmt.Errorf("unknown command %q", req.Command))
	}
}

func errResponse(err error) ipc.Response {
	return ipc.Response{OK: false, Error: err.Error()}
}

func dataResponse(v any) ipc.Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return errResponse(err)
	}
	return ipc.Response{OK: true, Data: raw}
}

// handlePair initiates an outgoing pairing session to a peer whose real
// cryptographic PeerID was learned out-of-band (printed by the responder
// daemon at startup) and network address; it registers the address with
// the transport before opening the session so AddPeer's AddPeer(peerID,
// addr) binding is in place before the first wire message is sent.
func (d *daemon) handlePair(args map[string]string) ipc.Response {
	peerID := ids.PeerId(args["peer_id"])
	addr := args["addr"]
	if peerID == "" || addr == "" {
		return errResponse(fmt.Errorf("pair requires peer_id and addr"))
	}
	d.tport.AddPeer(peerID, addr)
	sessionID := ids.NewSessionId()
	if err := d.pairingSender.OpenOutgoing(context.Background(), sessionID, peerID); err != nil {
		return errResponse(err)
	}
	return dataResponse(map[string]string{"session_id": string(sessionID)})
}

func (d *daemon) handleDecision(args map[string]string, kind pairing.EventKind) ipc.Response {
	sessionID := ids.SessionId(args["session_id"])
	if sessionID == "" {
		return errResponse(fmt.Errorf("%s requires session_id", eventKindName(kind)))
	}
	state, err := d.orch.Dispatch(sessionID, pairing.Event{Kind: kind})
	if err != nil {
		return errResponse(err)
	}
	return dataResponse(map[string]string{"state": state.String()})
}

func eventKindName(kind pairing.EventKind) string {
	if kind == pairing.EventUserAccepted {
		return "accept"
	}
	return "reject"
}

// handlePinDecision carries the operator's verdict, after comparing the
// PIN this daemon displayed against the one the peer device displayed,
// back into the pairing session (spec.md §4.10's human verification
// step — see internal/pairingwire.ConfirmPin/RejectPin).
func (d *daemon) handlePinDecision(args map[string]string, confirmed bool) ipc.Response {
	sessionID := ids.SessionId(args["session_id"])
	if sessionID == "" {
		return errResponse(fmt.Errorf("pin decision requires session_id"))
	}
	var (
		state pairing.State
		err   error
	)
	if confirmed {
		state, err = d.pairingSender.ConfirmPin(sessionID)
	} else {
		state, err = d.pairingSender.RejectPin(sessionID)
	}
	if err != nil {
		return errResponse(err)
	}
	return dataResponse(map[string]string{"state": state.String()})
}

type statusInfo struct {
	PeerID       string `json:"peer_id"`
	DeviceName   string `json:"device_name"`
	Addr         string `json:"addr"`
	ClipBackend  string `json:"clip_backend"`
	TrustedCount int    `json:"trusted_count"`
}

func (d *daemon) handleStatus() ipc.Response {
	devices, err := d.trustRepo.ListAll()
	if err != nil {
		return errResponse(err)
	}
	trusted := 0
	for _, dev := range devices {
		if dev.State == ports.PairingStateTrusted {
			trusted++
		}
	}
	return dataResponse(statusInfo{
		PeerID:       string(d.id.PeerID),
		DeviceName:   d.deviceName,
		Addr:         d.addr,
		ClipBackend:  d.clipBackend.Name(),
		TrustedCount: trusted,
	})
}

func (d *daemon) handleDevices() ipc.Response {
	devices, err := d.trustRepo.ListAll()
	if err != nil {
		return errResponse(err)
	}
	return dataResponse(devices)
}

// handleCopy writes text to the platform clipboard and, so the change is
// synced even on backends whose Watch() doesn't fire for a same-process
// write, feeds it through the capture pipeline directly.
func (d *daemon) handleCopy(args map[string]string) ipc.Response {
	text := args["text"]
	if text == "" {
		return errResponse(fmt.Errorf("copy requires text"))
	}
	snapshot := ports.SystemClipboardSnapshot{Formats: []ports.ClipboardFormat{
		{FormatID: "text", MimeType: "text/plain", Bytes: []byte(text)},
	}}
	if err := d.clipBackend.Write(snapshot); err != nil {
		return errResponse(fmt.Errorf("write clipboard: %w", err))
	}
	event, changed, err := d.pipeline.Capture()
	if err != nil {
		return errResponse(fmt.Errorf("capture: %w", err))
	}
	if changed {
		select {
		case d.localEvents <- event:
		default:
			slog.Warn("local event queue full, dropping admin copy")
		}
	}
	return dataResponse(map[string]bool{"changed": changed})
}

// handlePaste returns the first plain-text format (MIME text/plain or
// format id "text") currently on the platform clipboard, else the first
// format base64-encoded. The platform clipboard is kept in sync with the
// most recently applied local or remote clipboard event.
func (d *daemon) handlePaste() ipc.Response {
	snapshot, err := d.clipBackend.Read()
	if err != nil {
		return errResponse(fmt.Errorf("read clipboard: %w", err))
	}
	for _, f := range snapshot.Formats {
		if f.MimeType == "text/plain" || f.FormatID == "text" {
			return dataResponse(map[string]string{"text": string(f.Bytes)})
		}
	}
	if len(snapshot.Formats) > 0 {
		f := snapshot.Formats[0]
		return dataResponse(map[string]string{"format": f.MimeType, "bytes_base64": encodeBase64(f.Bytes)})
	}
	return dataResponse(map[string]string{"text": ""})
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
