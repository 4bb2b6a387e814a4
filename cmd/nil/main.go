// Command nil is a language server for Nix flakes, speaking LSP over
// stdio.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"

	"github.com/EricCrosson/nil/internal/analysis"
	"github.com/EricCrosson/nil/internal/lsp"
	"github.com/EricCrosson/nil/internal/resolver"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		workers int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "nil",
		Short: "Language server for Nix flakes",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()

			return runServe(cmd.Context(), logger, workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 4, "number of worker goroutines processing requests")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

const version = "0.1.0"

func runServe(ctx context.Context, logger zerolog.Logger, workers int) error {
	stream := jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{})

	host := analysis.NewMemHost()
	res := &resolver.ExecResolver{}

	srv := lsp.NewServer(lsp.Options{
		Host:     host,
		Resolver: res,
		Workers:  workers,
		Logger:   logger,
	})

	conn := jsonrpc2.NewConn(ctx, stream, srv)
	srv.Bind(conn)

	logger.Info().Msg("nil language server starting")
	return srv.Run(ctx)
}

// stdrwc adapts stdin/stdout to io.ReadWriteCloser for the jsonrpc2
// transport.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}

var _ io.ReadWriteCloser = stdrwc{}
