package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"pkt.systems/sandpit"
	"pkt.systems/sandpit/internal/format"
	"pkt.systems/sandpit/schema"
)

type oneShot struct {
	client  *sandpit.Client
	printer *format.Printer
}

func openOneShot(cmd *cobra.Command, opts *rootOptions, code, sandboxVersion string, quiet bool) (*oneShot, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	printer := format.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	printer.SetQuiet(quiet)
	client, err := newOneShotClient(cmd.Context(), cfg, printer)
	if err != nil {
		return nil, err
	}
	if sandboxVersion != "" {
		if err := client.Controller().SetSandboxVersion(schema.SandboxVersion(sandboxVersion)); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	client.Pipeline().Code().Store(code)
	return &oneShot{client: client, printer: printer}, nil
}

func (o *oneShot) wait(ctx context.Context) error {
	if err := o.client.Pipeline().Wait(ctx); err != nil {
		return err
	}
	if o.printer.Failed() {
		return errFailed
	}
	return nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	var sandboxVersion string
	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Format and run a program, streaming its output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(argOrEmpty(args), cmd.InOrStdin())
			if err != nil {
				return err
			}
			run, err := openOneShot(cmd, opts, code, sandboxVersion, quiet)
			if err != nil {
				return err
			}
			defer func() { _ = run.client.Close() }()
			if err := run.client.Pipeline().Run(cmd.Context()); err != nil {
				return err
			}
			return run.wait(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print program output and errors")
	cmd.Flags().StringVar(&sandboxVersion, "sandbox-version", "", "sandbox toolchain version")
	return cmd
}

func newFormatCmd(opts *rootOptions) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "format [file|-]",
		Short: "Format a program with the sandbox formatter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := argOrEmpty(args)
			if write && (path == "" || path == "-") {
				return errors.New("--write needs a file")
			}
			code, err := readSource(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			run, err := openOneShot(cmd, opts, code, "", true)
			if err != nil {
				return err
			}
			defer func() { _ = run.client.Close() }()
			if err := run.client.Pipeline().Format(cmd.Context()); err != nil {
				return err
			}
			if err := run.wait(cmd.Context()); err != nil {
				return err
			}
			formatted := run.client.Pipeline().Code().Load()
			if !write {
				_, err := fmt.Fprint(cmd.OutOrStdout(), formatted)
				return err
			}
			if formatted == code {
				return nil
			}
			return writeFilePreservingMode(path, formatted)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	return cmd
}

func writeFilePreservingMode(path, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), info.Mode().Perm())
}

func newShareCmd(opts *rootOptions) *cobra.Command {
	var qr bool
	cmd := &cobra.Command{
		Use:   "share [file|-]",
		Short: "Store a program as a snippet and print its link",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(argOrEmpty(args), cmd.InOrStdin())
			if err != nil {
				return err
			}
			run, err := openOneShot(cmd, opts, code, "", true)
			if err != nil {
				return err
			}
			defer func() { _ = run.client.Close() }()
			link, err := run.client.Pipeline().Share(cmd.Context())
			if err != nil {
				return errFailed
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, link); err != nil {
				return err
			}
			if qr {
				qrterminal.GenerateHalfBlock(link, qrterminal.L, out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&qr, "qr", false, "also print the link as a QR code")
	return cmd
}
