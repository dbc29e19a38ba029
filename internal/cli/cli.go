// Package cli holds the subcommands shared by the two relay binaries.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lightsocks/internal/key"
	"lightsocks/internal/service"
)

// GenkeyCommand returns the subcommand that prints a fresh key.
func GenkeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a fresh key and print it base64url-encoded",
		RunE: func(_ *cobra.Command, _ []string) error {
			k, err := key.Generate()
			if err != nil {
				return err
			}
			fmt.Println(key.Encode(k))
			return nil
		},
	}
}

// ServiceCommand returns the systemd management subcommand group for
// the relay binary of the given role ("local" or "server").
func ServiceCommand(role string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: fmt.Sprintf("Manage lightsocks-%s systemd services", role),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "install <config.json>",
			Short: "Register a config file as a systemd service",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return service.Unit{Role: role, ConfigPath: args[0]}.Install()
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Stop and remove a service",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return service.Remove(args[0])
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered lightsocks services",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return service.List()
			},
		},
	)
	return cmd
}
