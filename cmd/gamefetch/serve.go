package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gamefetch/internal/config"
	"gamefetch/internal/logging"
	"gamefetch/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	defaults := config.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the install history as a read-only JSON API",
		Args:  positional(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ln, err := net.Listen("tcp", a.cfg.Addr)
			if err != nil {
				return withCode(ExitGeneralError, fmt.Errorf("listen %s: %w", a.cfg.Addr, err))
			}
			srv := &http.Server{
				Handler:           server.New(st),
				ReadTimeout:       15 * time.Second,
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errc := make(chan error, 1)
			go func() { errc <- srv.Serve(ln) }()
			logging.LogServerStart(ln.Addr().String(), map[string]any{"db": a.cfg.AbsDBPath})
			fmt.Fprintf(c.OutOrStdout(), "serving history on http://%s\n", ln.Addr())

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			logging.LogServerShutdown("server stopped", err)
			return err
		},
	}
	cmd.Flags().StringVar(&a.flags.Host, "host", defaults.Host, "Listen host")
	cmd.Flags().IntVar(&a.flags.Port, "port", defaults.Port, "Listen port")
	return cmd
}
