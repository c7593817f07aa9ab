package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"go.klb.dev/uniclipboard/internal/ipc"
)

func newPasteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paste",
		Short: "Print the synced clipboard's current text",
		Long: `Reads the platform clipboard through the running daemon and prints its
text content to stdout (like "pbpaste"/"xclip -o"). Non-text content
currently on the clipboard is reported by MIME type instead of printed.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			resp, err := ipc.Call(ipc.Request{Command: "paste"})
			if err != nil {
				return fmt.Errorf("is the uniclipboard daemon running? %w", err)
			}
			if !resp.OK {
				return fmt.Errorf("paste failed: %s", resp.Error)
			}
			var data struct {
				Text        string `json:"text"`
				Format      string `json:"format"`
				BytesBase64 string `json:"bytes_base64"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return err
			}
			if data.Format != "" {
				fmt.Printf("(non-text clipboard content: %s, %d bytes base64)\n", data.Format, len(data.BytesBase64))
				return nil
			}
			fmt.Println(data.Text)
			return nil
		},
	}
}
