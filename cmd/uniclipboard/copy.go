package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"go.klb.dev/uniclipboard/internal/ipc"
)

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy [text]",
		Short: "Write text to the synced clipboard",
		Long: `Writes text to the platform clipboard through the running daemon, which
then syncs it to every trusted device exactly as a native clipboard
change would be.

With an argument, copies that text. Without one, reads stdin (like
"pbcopy"/"xclip -i").`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			text, err := readCopyInput(args)
			if err != nil {
				return err
			}
			resp, err := ipc.Call(ipc.Request{Command: "copy", Args: map[string]string{"text": text}})
			if err != nil {
				return fmt.Errorf("is the uniclipboard daemon running? %w", err)
			}
			if !resp.OK {
				return fmt.Errorf("copy failed: %s", resp.Error)
			}
			return nil
		},
	}
	return cmd
}

func readCopyInput(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
