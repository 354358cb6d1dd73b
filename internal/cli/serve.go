package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthkeep/hearth/internal/hub"
	"github.com/hearthkeep/hearth/internal/identity"
)

const defaultTokenExpiry = 30 * 24 * time.Hour

func newServeCmd() *cobra.Command {
	var addr string
	var secret string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a household hub",
		Long:  "Run the hub every device in the household pushes to and pulls from.\nHub state lives in memory; the devices hold the durable copies.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, addr, secret)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "token signing secret (or HEARTH_HUB_SECRET)")
	return cmd
}

func runServe(cmd *cobra.Command, addr, secret string) error {
	if secret == "" {
		secret = os.Getenv("HEARTH_HUB_SECRET")
	}
	if secret == "" {
		return exitError(cmd, exitUserError, "no signing secret: pass --secret or set HEARTH_HUB_SECRET")
	}

	logger := log.New(os.Stderr, "[hub] ", log.LstdFlags)
	issuer := identity.NewTokenIssuer(secret, defaultTokenExpiry)
	server := &http.Server{
		Addr:    addr,
		Handler: hub.NewServer(issuer, logger).Router(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Println("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Printf("listening on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return exitError(cmd, exitSysError, fmt.Sprintf("hub server: %s", err))
	}
	logger.Println("stopped")
	return nil
}
