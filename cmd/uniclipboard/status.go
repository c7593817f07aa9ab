package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go.klb.dev/uniclipboard/internal/ipc"
	"go.klb.dev/uniclipboard/internal/ports"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show this daemon's identity and trusted devices",
		Long: `Queries the running daemon over its local admin socket for its own
PeerID, device name, listen address, active clipboard backend, and the
list of devices it has paired with (spec.md trust state: trusted,
pending, revoked).`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error { return runStatus(jsonOut) },
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output raw JSON")
	return cmd
}

func runStatus(jsonOut bool) error {
	if !ipc.IsRunning() {
		return fmt.Errorf("no uniclipboard daemon is running (admin socket %s unreachable)", ipc.SocketPath())
	}

	statusResp, err := ipc.Call(ipc.Request{Command: "status"})
	if err != nil {
		return err
	}
	if !statusResp.OK {
		return fmt.Errorf("status: %s", statusResp.Error)
	}
	var st struct {
		PeerID       string `json:"peer_id"`
		DeviceName   string `json:"device_name"`
		Addr         string `json:"addr"`
		ClipBackend  string `json:"clip_backend"`
		TrustedCount int    `json:"trusted_count"`
	}
	if err := json.Unmarshal(statusResp.Data, &st); err != nil {
		return err
	}

	devicesResp, err := ipc.Call(ipc.Request{Command: "devices"})
	if err != nil {
		return err
	}
	if !devicesResp.OK {
		return fmt.Errorf("devices: %s", devicesResp.Error)
	}
	var devices []ports.PairedDevice
	if err := json.Unmarshal(devicesResp.Data, &devices); err != nil {
		return err
	}

	if jsonOut {
		enc, _ := json.MarshalIndent(struct {
			Status  any `json:"status"`
			Devices any `json:"devices"`
		}{st, devices}, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(st.PeerID, st.DeviceName, st.Addr, st.ClipBackend, devices)
	return nil
}

func printStatus(peerID, deviceName, addr, clipBackend string, devices []ports.PairedDevice) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PeerID:\t%s\n", peerID)
	fmt.Fprintf(w, "Device name:\t%s\n", deviceName)
	fmt.Fprintf(w, "Listening on:\t%s\n", addr)
	fmt.Fprintf(w, "Clipboard backend:\t%s\n", clipBackend)
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(devices) == 0 {
		fmt.Println("No paired devices.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "DEVICE NAME\tPEER ID\tSTATE\tLAST SEEN\n")
	fmt.Fprintf(tw, "-----------\t-------\t-----\t---------\n")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.DeviceName, d.PeerID, stateName(d.State), fmtAge(d.LastSeenAtMs))
	}
	_ = tw.Flush()
}

func stateName(s ports.PairingState) string {
	switch s {
	case ports.PairingStateTrusted:
		return "trusted"
	case ports.PairingStateRevoked:
		return "revoked"
	default:
		return "pending"
	}
}

// fmtAge renders a unix-millisecond timestamp as a human-readable age.
func fmtAge(ms int64) string {
	if ms == 0 {
		return "-"
	}
	age := time.Since(time.UnixMilli(ms)).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
