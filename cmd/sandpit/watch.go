package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/internal/format"
	"pkt.systems/sandpit/internal/watch"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Run a file on every save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if path == "-" {
				return errors.New("watch needs a file, not stdin")
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			code, err := readSource(path, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := pslog.Ctx(ctx)

			printer := format.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
			printer.SetQuiet(quiet)
			client, err := newOneShotClient(ctx, cfg, printer)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			if _, err := client.Settings().SetAutoRun(true); err != nil {
				return err
			}
			ctrl := client.Controller()
			ctrl.Start(ctx, "")

			onChange := func(text string) {
				printer.Reset()
				ctrl.OnChange(text)
			}
			watcher := watch.New(path, onChange, logger)
			onChange(code)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return watcher.Run(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				client.Pipeline().Cancel()
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print program output and errors")
	return cmd
}
