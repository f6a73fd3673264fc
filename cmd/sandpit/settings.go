package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/internal/appconfig"
	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/internal/settings"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change persisted editor settings",
	}
	cmd.AddCommand(newSettingsGetCmd(opts))
	cmd.AddCommand(newSettingsSetCmd(opts))
	return cmd
}

func newSettingsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [name]",
		Short: "Print one setting, or all of them as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := openSettings(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()
			return printSettings(cmd.OutOrStdout(), store, argOrEmpty(args))
		},
	}
}

func newSettingsSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := openSettings(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()
			if err := store.SetByName(args[0], args[1]); err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Debug("setting stored", "name", args[0], "value", args[1])
			return printSettings(cmd.OutOrStdout(), store, args[0])
		},
	}
}

func openSettings(ctx context.Context, opts *rootOptions) (*settings.Store, io.Closer, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	return openSettingsStore(ctx, cfg)
}

func openSettingsStore(ctx context.Context, cfg appconfig.Config) (*settings.Store, io.Closer, error) {
	logger := pslog.Ctx(ctx)
	kv, closer, err := persist.Open(cfg.Store.Backend, cfg.Store.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	return settings.New(kv, logger), closer, nil
}

func printSettings(w io.Writer, store *settings.Store, name string) error {
	if name != "" {
		value, err := store.GetByName(name)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, value)
		return err
	}
	all := make(map[string]string, len(settings.Names()))
	for _, n := range settings.Names() {
		value, err := store.GetByName(n)
		if err != nil {
			return err
		}
		all[n] = value
	}
	data, err := yaml.Marshal(all)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
