package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/uniclipboard/internal/blobstore"
	"go.klb.dev/uniclipboard/internal/clip"
	"go.klb.dev/uniclipboard/internal/clipboard"
	"go.klb.dev/uniclipboard/internal/config"
	"go.klb.dev/uniclipboard/internal/identity"
	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ipc"
	"go.klb.dev/uniclipboard/internal/keystore"
	"go.klb.dev/uniclipboard/internal/materializer"
	"go.klb.dev/uniclipboard/internal/pairingorch"
	"go.klb.dev/uniclipboard/internal/pairingwire"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/spool"
	"go.klb.dev/uniclipboard/internal/syncdispatch"
	"go.klb.dev/uniclipboard/internal/tlsconf"
	"go.klb.dev/uniclipboard/internal/transport"
	"go.klb.dev/uniclipboard/internal/trust"
)

const defaultListenAddr = ":7652"

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the uniclipboard daemon",
		Long: `Starts the uniclipboard daemon: watches the system clipboard, pushes every
change to paired devices over TLS, and applies incoming changes from them.

Pairing and day-to-day status are driven through the local admin socket by
the other subcommands ("uniclipboard pair", "uniclipboard status", ...);
"run" itself just serves.

Flags, environment variables, and config-file keys
  Flag                     Env var                       Config key
  ────────────────────────────────────────────────────────────────────
  --addr                   UC_ADDR                       addr
  --device-name            UC_DEVICE_NAME                device-name
  --network-passphrase     UC_NETWORK_PASSPHRASE         network-passphrase
  --encryption-passphrase  UC_ENCRYPTION_PASSPHRASE       encryption-passphrase
  --spool-budget-bytes     UC_SPOOL_BUDGET_BYTES         spool-budget-bytes
  --log-level              UC_LOG_LEVEL                  log-level
  --log-format             UC_LOG_FORMAT                 log-format
  --config                 (flag only)

Config file search order (first found wins)
  /etc/uniclipboard/uniclipboard.toml
  $HOME/.config/uniclipboard/uniclipboard.toml
A path supplied via --config is used instead of this search.

Precedence: defaults → config file → UC_* env vars → CLI flags

Transport security
  All peer connections are TLS, keyed from --network-passphrase. Two
  daemons only complete a TLS handshake if they share the same passphrase;
  this only gates the channel, not application-level trust — an attacker
  on the same passphrase still can't read or inject clipboard data without
  also being a paired (PIN-verified) device, since --encryption-passphrase
  gates the separate end-to-end master key used for clipboard content.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return config.BindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd, v) },
	}

	f := cmd.Flags()
	f.String("addr", defaultListenAddr, "address to listen on for peer connections")
	f.String("device-name", "", "human-readable name announced to peers (default: hostname)")
	f.String("network-passphrase", tlsconf.DefaultPassphrase, "shared secret gating the TLS transport")
	f.String("encryption-passphrase", "", "passphrase protecting the local clipboard master key (prompted if empty and a terminal is attached)")
	f.Int64("spool-budget-bytes", 256<<20, "total disk budget for staged (not-yet-materialized) clipboard payloads")
	config.AddLoggingFlags(cmd)
	config.AddConfigFlag(cmd)

	return cmd
}

func runDaemon(cmd *cobra.Command, v *viper.Viper) error {
	config.SetupLogging(v)

	configDir := config.Dir()
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	id, err := identity.LoadOrCreate(configDir)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	ks := keystore.New(configDir)
	deviceID, err := ks.LoadOrCreateDeviceID(ids.New)
	if err != nil {
		return fmt.Errorf("load device id: %w", err)
	}
	deviceName := defaultDeviceName(v.GetString("device-name"))

	encPassphrase, err := resolvePassphrase(v.GetString("encryption-passphrase"), "encryption passphrase: ")
	if err != nil && ks.EncryptionState() == keystore.StateUninitialized {
		return fmt.Errorf("first run requires an encryption passphrase: %w", err)
	}
	session, err := ks.Unlock(encPassphrase)
	if err != nil {
		return fmt.Errorf("unlock master key: %w", err)
	}

	trustRepo := trust.NewFileRepository(configDir)

	networkPassphrase := v.GetString("network-passphrase")
	serverCfg, clientCfg, err := tlsconf.ServerConfig(networkPassphrase)
	if err != nil {
		return fmt.Errorf("build tls config: %w", err)
	}
	tport := transport.NewTCP(id.PeerID, serverCfg, clientCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := v.GetString("addr")
	if err := tport.Listen(ctx, addr); err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	pairingSender := pairingwire.New(tport, id, deviceID, deviceName)
	orch := pairingorch.New(pairingSender, trustRepo, nowMs)
	pairingSender.Attach(orch)

	blobs := blobstore.NewEncryptedStore(blobstore.NewFsStore(filepath.Join(configDir, "blobs")), session)
	store := clipboard.NewMemory()

	spoolBudget := v.GetInt64("spool-budget-bytes")
	manager := spool.NewManager(filepath.Join(configDir, "spool"), spoolBudget)
	cache := spool.NewCache(4096, 64<<20)
	spooler := spool.NewSpooler(cache, manager, 64, 64)
	blobRepo := materializer.NewInMemoryBlobRepository()
	worker := materializer.NewWorker(spooler.Notifications(), manager, cache, store, blobs, blobRepo, nowMs)

	clipBackend := clip.New()
	defer clipBackend.Close()
	pipeline := clipboard.NewPipeline(clipBackend, store, spooler, deviceID, nowMs)

	dispatcher := syncdispatch.New(session, tport, trustRepo, blobs, store, id.PeerID, deviceName, nowMs)
	localEvents := make(chan *clipboard.Event, 16)

	go spooler.Run(ctx)
	go worker.Run(ctx)
	go dispatcher.Run(ctx, localEvents, primaryRepOf(store))
	go captureLoop(ctx, pipeline, clipBackend, localEvents)
	go inboundLoop(ctx, tport, pairingSender, dispatcher, clipBackend)
	go notifyLoop(ctx, pairingSender)

	adminLn, err := ipc.Listen()
	if err != nil {
		slog.Warn("admin socket unavailable, pair/status/copy/paste subcommands will not work", "error", err)
	} else {
		defer adminLn.Close()
		d := &daemon{
			id: id, deviceName: deviceName, deviceID: deviceID,
			addr: addr, tport: tport, trustRepo: trustRepo, orch: orch,
			pairingSender: pairingSender, store: store, clipBackend: clipBackend,
			pipeline: pipeline, localEvents: localEvents, ks: ks,
		}
		go adminLoop(ctx, adminLn, d)
	}

	slog.Info("uniclipboard daemon started",
		"peer_id", string(id.PeerID), "device_name", deviceName, "addr", addr,
		"admin_socket", ipc.SocketPath())

	<-ctx.Done()
	slog.Info("shutting down")
	_ = tport.Close()
	return nil
}

// daemon bundles the live components the admin socket needs to answer
// pair/status/copy/paste requests.
type daemon struct {
	id            *identity.Identity
	deviceName    string
	deviceID      string
	addr          string
	tport         *transport.TCP
	trustRepo     trust.Repository
	orch          *pairingorch.Orchestrator
	pairingSender *pairingwire.Sender
	store         *clipboard.Memory
	clipBackend   clip.Backend
	pipeline      *clipboard.Pipeline
	localEvents   chan<- *clipboard.Event
	ks            *keystore.Store
}

// primaryRepOf returns the primary representation id of a just-captured
// event by reading back the selection decision recorded alongside it.
func primaryRepOf(store *clipboard.Memory) func(*clipboard.Event) ids.RepresentationId {
	return func(event *clipboard.Event) ids.RepresentationId {
		if entry, ok := store.LatestEntry(); ok && entry.EventID == event.ID && len(event.Representations) > 0 {
			return entry.Selection.Primary
		}
		if len(event.Representations) > 0 {
			return event.Representations[0].ID
		}
		return ""
	}
}

// captureLoop runs one Capture per clipboard-change notification, pushing
// newly-captured (non-deduplicated) events to localEvents for dispatch.
func captureLoop(ctx context.Context, pipeline *clipboard.Pipeline, clipBackend clip.Backend, localEvents chan<- *clipboard.Event) {
	watch := clipBackend.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-watch:
			if !ok {
				return
			}
			event, changed, err := pipeline.Capture()
			if err != nil {
				slog.Error("clipboard capture failed", "error", err)
				continue
			}
			if !changed {
				continue
			}
			select {
			case localEvents <- event:
			default:
				slog.Warn("local event queue full, dropping capture", "event_id", string(event.ID))
			}
		}
	}
}

// inboundLoop routes every inbound wire envelope to the pairing handler or
// the clipboard sync dispatcher depending on its kind, applying any
// successfully admitted remote event to the platform clipboard.
func inboundLoop(ctx context.Context, tport *transport.TCP, pairingSender *pairingwire.Sender, dispatcher *syncdispatch.Dispatcher, clipBackend clip.Backend) {
	for {
		select {
		case <-ctx.Done():
			return
		case inbound, ok := <-tport.Receive():
			if !ok {
				return
			}
			if isPairingKind(inbound.Env.Kind) {
				if err := pairingSender.HandleInbound(inbound); err != nil {
					slog.Error("pairing message handling failed", "error", err)
				}
				continue
			}
			event, err := dispatcher.HandleRemote(inbound)
			if err != nil {
				slog.Error("remote clipboard message rejected", "peer_id", string(inbound.PeerID), "error", err)
				continue
			}
			if event == nil {
				continue // self-echo, dedup, or sequence regression
			}
			if err := applyToClipboard(clipBackend, event); err != nil {
				slog.Error("apply remote clipboard event failed", "event_id", string(event.ID), "error", err)
			}
		}
	}
}

func isPairingKind(kind string) bool {
	switch kind {
	case "PAIRING_REQUEST", "PAIRING_CHALLENGE", "PAIRING_RESPONSE", "PAIRING_CONFIRM":
		return true
	default:
		return false
	}
}

// applyToClipboard writes a remote event's representations to the
// platform clipboard so the user sees the synced content locally.
func applyToClipboard(clipBackend clip.Backend, event *clipboard.Event) error {
	snapshot := ports.SystemClipboardSnapshot{}
	for _, rep := range event.Representations {
		if rep.InlineData == nil {
			continue
		}
		snapshot.Formats = append(snapshot.Formats, ports.ClipboardFormat{
			FormatID: rep.FormatID, MimeType: rep.MimeType, Bytes: rep.InlineData,
		})
	}
	if len(snapshot.Formats) == 0 {
		return nil
	}
	return clipBackend.Write(snapshot)
}

// notifyLoop logs pairing milestones (incoming requests, derived PINs) for
// the operator to act on via "uniclipboard pair accept/reject".
func notifyLoop(ctx context.Context, pairingSender *pairingwire.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-pairingSender.Notifications():
			if !ok {
				return
			}
			switch n.Kind {
			case "incoming_request":
				slog.Info("incoming pairing request",
					"session_id", string(n.SessionID), "peer_id", string(n.PeerID), "device_name", n.DeviceName,
					"hint", "run 'uniclipboard pair accept "+string(n.SessionID)+"' to trust this device")
			case "pin":
				slog.Info("pairing PIN derived — compare with the other device",
					"session_id", string(n.SessionID), "pin", n.Pin)
			}
		}
	}
}
