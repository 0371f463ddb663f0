package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/pkg/models"
	"github.com/intentscout/scoutctl/pkg/printer"
)

// NewHealthCmd checks that the API is reachable. It does not need credentials.
func NewHealthCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the IntentScout API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			health, err := client.Decode[models.Health](o.Client.GetPublic(cmd.Context(), client.EndpointHealth))
			if err != nil {
				return fmt.Errorf("health check against %s failed: %w", o.Client.BaseURL, err)
			}
			return o.Printer.Print(health, func(w io.Writer) error {
				t := printer.NewTablePrinter(w)
				t.SetHeaders("Url", "Status", "Version")
				t.AddRow(o.Client.BaseURL, printer.FormatStatus(health.Status), printer.EmptyValueOrDefault(health.Version, "-"))
				return t.Render()
			})
		},
	}
}

// NewWhoAmICmd prints the signed-in user.
func NewWhoAmICmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the configured credentials belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			user, err := client.Decode[models.User](o.Client.Get(cmd.Context(), client.EndpointMe))
			if err != nil {
				return apiErr("failed to get current user", err)
			}
			return o.Printer.Print(user, func(w io.Writer) error {
				t := printer.NewTablePrinter(w)
				t.SetHeaders("Id", "Email", "Name", "Organization", "Role")
				t.AddRow(user.ID, user.Email,
					printer.EmptyValueOrDefault(user.FullName, "-"),
					printer.EmptyValueOrDefault(user.OrganizationID, "-"),
					printer.EmptyValueOrDefault(user.Role, "-"))
				return t.Render()
			})
		},
	}
}
