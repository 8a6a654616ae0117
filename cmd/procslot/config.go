package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newCmdConfig creates the `config` command printing the effective config.
func newCmdConfig(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := o.config(cmd.Context())
			if err != nil {
				return err
			}
			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err = encoder.Encode(config); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}
