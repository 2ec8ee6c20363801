// Package client contains Cobra CLI commands speaking the boardlog HTTP API.
package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewAppendCommand constructs the `append` command.
func NewAppendCommand(baseURL BaseURLFunc) *cobra.Command {
	appendCmd := &cobra.Command{
		Use:   "append",
		Short: "Append an update to a document's log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, _ := cmd.Flags().GetString("document")
			data, _ := cmd.Flags().GetString("data")
			dataB64, _ := cmd.Flags().GetString("data-b64")
			if doc == "" {
				return fmt.Errorf("document is required")
			}
			payload := []byte(data)
			if dataB64 != "" {
				b, err := base64.StdEncoding.DecodeString(dataB64)
				if err != nil {
					return fmt.Errorf("invalid --data-b64: %w", err)
				}
				payload = b
			}
			var resp struct {
				Sequence uint64 `json:"sequence"`
			}
			if err := postJSON(cmd.Context(), baseURL()+"/v1/updates/append",
				map[string]any{"documentId": doc, "payload": payload}, &resp); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "sequence:", resp.Sequence)
			return nil
		},
	}
	appendCmd.Flags().StringP("document", "d", "", "Document id")
	appendCmd.Flags().String("data", "", "Update payload (raw bytes)")
	appendCmd.Flags().String("data-b64", "", "Update payload (base64, overrides --data)")
	return appendCmd
}

// NewReadCommand constructs the `read` command.
func NewReadCommand(baseURL BaseURLFunc) *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read a document's update log in sequence order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, _ := cmd.Flags().GetString("document")
			if doc == "" {
				return fmt.Errorf("document is required")
			}
			var resp struct {
				DocumentID string `json:"documentId"`
				Updates    []struct {
					Sequence uint64 `json:"sequence"`
					Payload  []byte `json:"payload"`
				} `json:"updates"`
			}
			if err := getJSON(cmd.Context(), baseURL()+"/v1/updates?documentId="+url.QueryEscape(doc), &resp); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, u := range resp.Updates {
				_ = enc.Encode(decodedUpdate(u.Sequence, u.Payload))
			}
			return nil
		},
	}
	readCmd.Flags().StringP("document", "d", "", "Document id")
	return readCmd
}

// NewStateCommand constructs the `state` command.
func NewStateCommand(baseURL BaseURLFunc) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Fetch a document's merged seed update",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, _ := cmd.Flags().GetString("document")
			if doc == "" {
				return fmt.Errorf("document is required")
			}
			var resp struct {
				DocumentID string `json:"documentId"`
				Update     []byte `json:"update"`
				Records    int    `json:"records"`
			}
			if err := getJSON(cmd.Context(), baseURL()+"/v1/documents/state?documentId="+url.QueryEscape(doc), &resp); err != nil {
				return err
			}
			var out struct {
				DocumentID string `json:"documentId"`
				Records    int    `json:"records"`
				UpdateB64  string `json:"update_b64"`
			}
			out.DocumentID = resp.DocumentID
			out.Records = resp.Records
			if len(resp.Update) > 0 {
				out.UpdateB64 = base64.StdEncoding.EncodeToString(resp.Update)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	stateCmd.Flags().StringP("document", "d", "", "Document id")
	return stateCmd
}

// NewCompactCommand constructs the `compact` command.
func NewCompactCommand(baseURL BaseURLFunc) *cobra.Command {
	compactCmd := &cobra.Command{
		Use:   "compact",
		Short: "Collapse a document's history into a single equivalent record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, _ := cmd.Flags().GetString("document")
			if doc == "" {
				return fmt.Errorf("document is required")
			}
			var resp struct {
				Compacted bool   `json:"compacted"`
				Removed   int    `json:"removed"`
				Sequence  uint64 `json:"sequence"`
			}
			if err := postJSON(cmd.Context(), baseURL()+"/v1/documents/compact",
				map[string]string{"documentId": doc}, &resp); err != nil {
				return err
			}
			var out struct {
				DocumentID string `json:"documentId"`
				Compacted  bool   `json:"compacted"`
				Removed    int    `json:"removed"`
				Sequence   uint64 `json:"sequence"`
			}
			out.DocumentID = doc
			out.Compacted = resp.Compacted
			out.Removed = resp.Removed
			out.Sequence = resp.Sequence
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	compactCmd.Flags().StringP("document", "d", "", "Document id")
	return compactCmd
}

// NewStatsCommand constructs the `stats` command.
func NewStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a document's stored history size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, _ := cmd.Flags().GetString("document")
			if doc == "" {
				return fmt.Errorf("document is required")
			}
			var resp struct {
				Records       uint64 `json:"records"`
				Bytes         uint64 `json:"bytes"`
				FirstSequence uint64 `json:"firstSequence"`
				LastSequence  uint64 `json:"lastSequence"`
			}
			if err := getJSON(cmd.Context(), baseURL()+"/v1/documents/stats?documentId="+url.QueryEscape(doc), &resp); err != nil {
				return err
			}
			var out struct {
				DocumentID    string `json:"documentId"`
				Records       uint64 `json:"records"`
				Bytes         uint64 `json:"bytes"`
				FirstSequence uint64 `json:"firstSequence"`
				LastSequence  uint64 `json:"lastSequence"`
			}
			out.DocumentID = doc
			out.Records = resp.Records
			out.Bytes = resp.Bytes
			out.FirstSequence = resp.FirstSequence
			out.LastSequence = resp.LastSequence
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	statsCmd.Flags().StringP("document", "d", "", "Document id")
	return statsCmd
}

// NewDocsCommand constructs the `docs` command.
func NewDocsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List documents holding at least one record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Documents []string `json:"documents"`
			}
			if err := getJSON(cmd.Context(), baseURL()+"/v1/documents", &resp); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}
