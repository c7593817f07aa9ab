package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"go.klb.dev/uniclipboard/internal/ipc"
)

func newPairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair <peer-id> <host:port>",
		Short: "Pair with a remote device",
		Long: `Starts an outgoing pairing session with the daemon at <host:port>.

<peer-id> is the remote device's cryptographic PeerID, not its network
address — there is no address-based discovery, since an address alone
cannot be trusted as a device's identity. The responder daemon prints its
PeerID to its log at startup; copy it from there (or from that device's
"uniclipboard status").

Both sides will see a 6-digit PIN logged ("pairing PIN derived — compare
with the other device"). The responder accepts the incoming request with
"uniclipboard pair accept <session-id>"; the initiator then sees its own
derived PIN and must separately confirm it matches what the other device
displayed with "uniclipboard pair confirm-pin <session-id>" (or
"pair reject-pin <session-id>" if it doesn't) — this is the one step a
person, not the software, must decide, since it's the only thing that
actually detects an attacker in the middle.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := ipc.Call(ipc.Request{Command: "pair", Args: map[string]string{
				"peer_id": args[0],
				"addr":    args[1],
			}})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("pair failed: %s", resp.Error)
			}
			var data struct {
				SessionID string `json:"session_id"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return err
			}
			fmt.Printf("pairing session %s started, watch the daemon log for the PIN\n", data.SessionID)
			return nil
		},
	}

	cmd.AddCommand(newPairAcceptCmd(), newPairRejectCmd(), newPairConfirmPinCmd(), newPairRejectPinCmd())
	return cmd
}

func newPairAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <session-id>",
		Short: "Accept an incoming or in-progress pairing session",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return pairDecision("accept", args[0]) },
	}
}

func newPairRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <session-id>",
		Short: "Reject an incoming or in-progress pairing session",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return pairDecision("reject", args[0]) },
	}
}

func newPairConfirmPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-pin <session-id>",
		Short: "Confirm the displayed PIN matches the other device's",
		Long: `Tells the daemon that you have compared the PIN it showed you for this
session against the PIN the other device is showing, and they match. This
is the step that actually authenticates the peer — do not run it without
comparing the two numbers yourself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error { return pairDecision("confirm_pin", args[0]) },
	}
}

func newPairRejectPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject-pin <session-id>",
		Short: "Reject the session because the displayed PINs don't match",
		Args:  cobra.ExactArgs(1),
		RunE:  func(_ *cobra.Command, args []string) error { return pairDecision("reject_pin", args[0]) },
	}
}

func pairDecision(command, sessionID string) error {
	resp, err := ipc.Call(ipc.Request{Command: command, Args: map[string]string{"session_id": sessionID}})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s failed: %s", command, resp.Error)
	}
	var data struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return err
	}
	fmt.Printf("session %s is now %s\n", sessionID, data.State)
	return nil
}
