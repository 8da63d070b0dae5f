package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/squash/internal/pipeline"
	"github.com/ajitpratap0/squash/pkg/config"
	"github.com/ajitpratap0/squash/pkg/formats"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(config.NewViper())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "squash",
		Short: "Squash small blocks of rows into larger ones",
		Long: `Squash reads files as streams of row blocks, merges consecutive small
blocks until they reach a row or byte threshold and writes the result in any
supported format. Order and content of the rows are preserved.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Squash v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "formats",
		Short: "List supported formats",
		Run: func(cmd *cobra.Command, args []string) {
			printFormats(cmd.OutOrStdout(), formats.Default())
		},
	})

	root.AddCommand(newSchemaCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newRunCmd(v))
	return root
}

func printFormats(w io.Writer, reg *formats.Registry) {
	fmt.Fprintf(w, "%-14s %-6s %-6s %-10s %s\n", "FORMAT", "INPUT", "OUTPUT", "PARALLEL", "EXTENSIONS")
	for _, info := range reg.Formats() {
		fmt.Fprintf(w, "%-14s %-6t %-6t %-10t %s\n",
			info.Name, info.Input, info.Output, info.SupportsParallelFormatting, strings.Join(info.Extensions, " "))
	}
}

func newSchemaCmd() *cobra.Command {
	var format, compressionName string

	cmd := &cobra.Command{
		Use:   "schema <file>",
		Short: "Print the columns of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep := config.EndpointConfig{Path: args[0], Format: format, Compression: compressionName}
			schema, name, err := pipeline.ReadSchema(ep, formats.Default(), nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", name)
			for _, f := range schema.Fields {
				fmt.Fprintf(out, "%s\t%s\n", f.Name, f.Type)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Input format; guessed from the file name when empty")
	cmd.Flags().StringVar(&compressionName, "compression", "auto", "Input compression")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <file>",
		Short: "Write the default configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Load and validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d streams, ok\n", args[0], len(cfg.Streams))
			return nil
		},
	})
	return cmd
}
