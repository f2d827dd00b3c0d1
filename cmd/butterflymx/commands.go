package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saturnines/butterflymx-go/pkg/butterflymx"
	"github.com/saturnines/butterflymx-go/pkg/config"
)

type rootOptions struct {
	configPath       string
	envFiles         []string
	showRefreshToken bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "butterflymx",
		Short: "Talk to the ButterflyMX resident API",
		Long: `butterflymx signs in to ButterflyMX with the credentials from a YAML config
file and runs GraphQL operations against the resident API.

Examples:
  # List tenants and the access points they can open
  butterflymx tenants

  # Open a door
  butterflymx open <tenant-id> <access-point-id>

  # Describe schema types
  butterflymx introspect Tenant AccessPoint

  # Run a raw document read from stdin
  echo '{ tenants { nodes { id } } }' | butterflymx query -
`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "butterflymx.yaml", "config file")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, ".env files to load before reading the config (default .env)")
	cmd.PersistentFlags().BoolVar(&opts.showRefreshToken, "show-refresh-token", false, "print the session's refresh token to stderr when done")

	cmd.AddCommand(
		newTenantsCmd(opts),
		newOpenCmd(opts),
		newIntrospectCmd(opts),
		newQueryCmd(opts),
	)
	return cmd
}

func newTenantsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List tenants with their access points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(c *butterflymx.Client) (any, error) {
				return c.Tenants(cmd.Context())
			})
		},
	}
}

func newOpenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <tenant-id> <access-point-id>",
		Short: "Open an access point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(c *butterflymx.Client) (any, error) {
				id, err := c.OpenAccessPoint(cmd.Context(), args[0], args[1])
				if err != nil {
					return nil, err
				}
				return map[string]string{"clientMutationId": id}, nil
			})
		},
	}
}

func newIntrospectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "introspect <type>...",
		Short: "Describe schema types and their fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(c *butterflymx.Client) (any, error) {
				return c.TypesIntrospection(cmd.Context(), args...)
			})
		},
	}
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <document|->",
		Short: "Execute a GraphQL document, read from stdin when the argument is -",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			document := args[0]
			if document == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				document = string(b)
			}
			if strings.TrimSpace(document) == "" {
				return fmt.Errorf("empty document")
			}
			return opts.run(cmd, func(c *butterflymx.Client) (any, error) {
				return c.Execute(cmd.Context(), document)
			})
		},
	}
}

// run loads the config, calls fn with a client and prints its result as
// JSON on stdout.
func (o *rootOptions) run(cmd *cobra.Command, fn func(*butterflymx.Client) (any, error)) error {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	client, err := butterflymx.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	result, runErr := fn(client)
	if o.showRefreshToken {
		if rt, err := client.Session().RefreshToken(); err == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "refresh token: %s\n", rt.Value)
		}
	}
	if runErr != nil {
		return runErr
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
