package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/procslot"
	"go.uber.org/zap"
)

// rootOptions defines flags shared by all commands.
type rootOptions struct {
	configURL   string
	development bool
	logLevel    string
}

func (o *rootOptions) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.configURL, "config", "", "config URL (file://, mem://, s3://, ...)")
	cmd.PersistentFlags().BoolVar(&o.development, "dev", false, "use the development logger")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "info", "log level")
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}
	config := zap.NewProductionConfig()
	if o.development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = level
	return config.Build()
}

func (o *rootOptions) config(ctx context.Context) (*procslot.Config, error) {
	if o.configURL == "" {
		return procslot.DefaultConfig(), nil
	}
	return procslot.LoadConfig(ctx, o.configURL)
}

// newCmdRoot creates the procslot command.
func newCmdRoot() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "procslot",
		Short:         "Slot based process resource manager",
		SilenceUsage:  true,
	}
	o.addFlags(cmd)
	cmd.AddCommand(newCmdRun(o))
	cmd.AddCommand(newCmdConfig(o))
	return cmd
}
