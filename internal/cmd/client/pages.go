package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// NewPagesCommand constructs the `pages` command group. Pages exist only on
// deployments running the embedded backend.
func NewPagesCommand(baseURL BaseURLFunc) *cobra.Command {
	pagesCmd := &cobra.Command{Use: "pages", Short: "Page operations (embedded backend)"}
	pagesCmd.AddCommand(
		newPagesCreateCommand(baseURL),
		newPagesListCommand(baseURL),
		newPagesDeleteCommand(baseURL),
	)
	return pagesCmd
}

func newPagesCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			title, _ := cmd.Flags().GetString("title")
			var resp json.RawMessage
			if err := postJSON(cmd.Context(), baseURL()+"/v1/pages",
				map[string]string{"id": id, "title": title}, &resp); err != nil {
				return err
			}
			var out any
			if err := json.Unmarshal(resp, &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	createCmd.Flags().String("id", "", "Page id (generated when empty)")
	createCmd.Flags().String("title", "", "Page title")
	return createCmd
}

func newPagesListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp json.RawMessage
			if err := getJSON(cmd.Context(), baseURL()+"/v1/pages", &resp); err != nil {
				return err
			}
			var out any
			if err := json.Unmarshal(resp, &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newPagesDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a page and its entire update log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			confirm, _ := cmd.Flags().GetBool("confirm")
			if id == "" {
				return fmt.Errorf("id is required")
			}
			if !confirm {
				return fmt.Errorf("use --confirm to delete page %s and its update log", id)
			}
			if err := doDelete(cmd.Context(), baseURL()+"/v1/pages?id="+url.QueryEscape(id)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	deleteCmd.Flags().String("id", "", "Page id")
	deleteCmd.Flags().Bool("confirm", false, "Confirm the delete operation")
	return deleteCmd
}
