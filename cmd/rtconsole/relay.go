package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	openairt "github.com/codewandler/openairt-console"
	"github.com/codewandler/openairt-console/internal/config"
	"github.com/codewandler/openairt-console/relay"
)

func newRelayCmd() *cobra.Command {
	var (
		listen   string
		upstream string
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve a websocket relay that holds the API key for its clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr())

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			key := config.APIKey()
			if key == "" {
				if key, err = config.NewCredentialStore("").Load(); err != nil {
					return err
				}
			}
			if key == "" {
				return fmt.Errorf("relay needs %s or a stored key", config.EnvAPIKey)
			}
			if upstream == "" {
				upstream = cfg.URL
			}
			if upstream == "" {
				upstream = openairt.DefaultURL
			}

			server, err := relay.New(relay.Config{
				UpstreamURL: upstream,
				APIKey:      key,
				Model:       cfg.Model,
				DialTimeout: cfg.DialTimeout,
				Logger:      logger,
				Metrics:     newMetrics(metricsAddr, logger),
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              listen,
				Handler:           server,
				ReadHeaderTimeout: 10 * time.Second,
			}
			fmt.Fprintf(cmd.OutOrStdout(), "relay listening on %s, forwarding to %s\n", listen, upstream)
			logger.Info("relay listening", slog.String("addr", listen), slog.String("upstream", upstream))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8081", "address to accept clients on")
	cmd.Flags().StringVar(&upstream, "upstream", "", "realtime endpoint to forward to")
	return cmd
}
