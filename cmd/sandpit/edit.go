package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/sandpit"
	"pkt.systems/sandpit/internal/appconfig"
	"pkt.systems/sandpit/internal/tui"
	"pkt.systems/sandpit/schema"
)

func newEditCmd(opts *rootOptions) *cobra.Command {
	var tab int
	var location string
	var template string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Open the terminal editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, closeLog, err := editLogger(cfg.StateDir)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog.Close() }()
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			client, err := sandpit.New(ctx, editClientConfig(cfg), sandpit.ClientDeps{Logger: logger})
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			ctrl := client.Controller()
			if cmd.Flags().Changed("tab") {
				if err := ctrl.SetTab(schema.TabID(tab)); err != nil {
					return err
				}
			}

			events, unsubscribe := client.Subscribe()
			defer unsubscribe()
			go ctrl.Start(ctx, location)
			if template != "" {
				ctrl.RequestTemplate(schema.TemplateID(template))
			}

			program := tea.NewProgram(tui.New(ctrl, events), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := program.Run(); err != nil {
				if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
					return nil
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&tab, "tab", 1, "code tab to open")
	cmd.Flags().StringVar(&location, "location", "", "location to open, e.g. /snippets/<id>")
	cmd.Flags().StringVar(&template, "template", "", "load a template on start")
	return cmd
}

// editClientConfig defaults the shortcut modifier to alt, since terminals
// do not report ctrl+enter.
func editClientConfig(cfg appconfig.Config) sandpit.ClientConfig {
	out := clientConfig(cfg)
	if out.Options.Modifier == "" {
		out.Options.Modifier = schema.ModifierAlt
	}
	return out
}

// editLogger logs to a file under the state dir; the terminal belongs to
// the editor while it runs.
func editLogger(stateDir string) (pslog.Logger, io.Closer, error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(stateDir, "sandpit.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	logger := pslog.NewWithOptions(f, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.InfoLevel,
	})
	return logger, f, nil
}
