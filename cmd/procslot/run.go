package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/procslot"
	"github.com/viant/procslot/model"
	"github.com/viant/procslot/process/cardgame"
	"github.com/viant/procslot/service/event"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// runOptions defines flags for the run command.
type runOptions struct {
	root     *rootOptions
	games    int
	target   int
	interval time.Duration
	duration time.Duration
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.games, "games", 3, "number of CardGame processes to start")
	cmd.Flags().IntVar(&o.target, "tricks", cardgame.DefaultTarget, "tricks per game")
	cmd.Flags().DurationVar(&o.interval, "trick-interval", cardgame.DefaultInterval, "time per trick")
	cmd.Flags().DurationVar(&o.duration, "duration", 10*time.Second, "how long to run, 0 runs until interrupted")
}

// report is the run summary
type report struct {
	Started  []string              `yaml:"started"`
	Rejected []string              `yaml:"rejected,omitempty"`
	Ticks    int                   `yaml:"ticks"`
	Slots    []*model.SlotSnapshot `yaml:"slots"`
}

func (o *runOptions) run(ctx context.Context, cmd *cobra.Command) error {
	logger, err := o.root.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	config, err := o.root.config(ctx)
	if err != nil {
		return err
	}
	srv, err := procslot.New(procslot.WithConfig(config), procslot.WithLogger(logger))
	if err != nil {
		return err
	}
	unsubscribe := srv.Subscribe(func(_ context.Context, message *event.Message) {
		logger.Info("process event",
			zap.String("process", message.Context.ProcessID),
			zap.String("tag", message.Data.Tag))
	}, event.ProcessEvent)
	defer unsubscribe()

	manager := srv.Manager()
	summary := &report{}
	params := map[string]interface{}{"target": o.target, "interval": o.interval.String()}
	for i := 0; i < o.games; i++ {
		id, err := manager.CreateProcess(ctx, cardgame.Kind, params)
		if err != nil {
			return err
		}
		if _, err = manager.StartProcess(ctx, id); err != nil {
			logger.Warn("failed to start process", zap.String("process", id), zap.Error(err))
			summary.Rejected = append(summary.Rejected, id)
			continue
		}
		summary.Started = append(summary.Started, id)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if o.duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, o.duration)
		defer cancel()
	}
	if err = srv.Runtime().Start(runCtx); err != nil {
		return err
	}
	<-runCtx.Done()

	summary.Slots = srv.Grid().Snapshot()
	summary.Ticks = srv.Runtime().Ticks()
	if err = srv.Runtime().Shutdown(ctx); err != nil {
		logger.Error("failed to shut down", zap.Error(err))
	}
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err = encoder.Encode(summary); err != nil {
		return err
	}
	return encoder.Close()
}

// newCmdRun creates the `run` command.
func newCmdRun(root *rootOptions) *cobra.Command {
	o := &runOptions{root: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run CardGame processes on the slot grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), cmd)
		},
	}
	o.addFlags(cmd)
	return cmd
}
