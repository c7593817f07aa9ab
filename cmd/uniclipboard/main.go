// uniclipboard: end-to-end encrypted clipboard sync between paired devices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "uniclipboard",
		Short: "End-to-end encrypted clipboard sync",
		Long: `uniclipboard synchronizes the system clipboard across paired devices
over a direct TLS connection. Nothing is relayed through a cloud service:
two devices pair once (a short PIN compares nonces and identity keys over
the wire) and from then on every clipboard change is encrypted and pushed
directly to each trusted peer.

Run "uniclipboard run" to start the daemon on each device, then
"uniclipboard pair <peer-id> <host:port>" from one device to the other to
trust it — the responder's PeerID (printed at startup, or visible via its
own "uniclipboard status") is required alongside its address, since an
address alone is not a verifiable identity.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newPairCmd(),
		newStatusCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("uniclipboard %s\n", Version)
		},
	}
}
