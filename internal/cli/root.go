package cli

import (
	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/mshroom/RecordManager/internal/config"
	"github.com/mshroom/RecordManager/internal/rmlog"
)

// RootOptions holds the flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	SourceID   string
	Verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the "recordmanager" command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "recordmanager",
		Short:         "Harvest and enrich metadata from OAI-PMH data sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			style := rmlog.StyleTerminal
			level := ""
			if opts.Verbose {
				level = "debug"
			}
			logger, err := rmlog.New(rmlog.Config{Style: style, Level: level})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize logger", err)
			}
			opts.logger = logger

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "recordmanager.ini", "path to the ini configuration file")
	cmd.PersistentFlags().StringVarP(&opts.SourceID, "source", "s", "", "data source id from the config file (required)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newHarvestCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newSetsCommand(opts))
	cmd.AddCommand(newGetCommand(opts))

	return cmd
}

func (o *RootOptions) sourceConfig() (*config.Source, error) {
	if o.SourceID == "" {
		return nil, WrapExitError(ExitCommandError, "--source is required", nil)
	}
	src, ok := o.cfg.Sources[o.SourceID]
	if !ok {
		return nil, WrapExitError(ExitCommandError, "unknown source \""+o.SourceID+"\"", nil)
	}
	return src, nil
}
