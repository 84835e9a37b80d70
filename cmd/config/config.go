package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hsharrison/govrpn/internal/config"
)

// NewCmd prints the server configuration file that serve would generate
// for the configured receivers, for inspection against the sample
// vrpn.cfg.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the generated server configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			receivers, err := cfg.BuildReceivers()
			if err != nil {
				return err
			}

			for _, r := range receivers {
				fmt.Fprint(cmd.OutOrStdout(), r.ConfigText())
			}

			return nil
		},
	}
}
