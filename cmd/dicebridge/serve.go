package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dicebridge/internal/ws"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a responder instance",
		Long: `Runs a responder: answers availability probes, executes roll triggers
from siblings, publishes the liveness heartbeat, and exposes a local
WebSocket bridge for UI clients.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(true)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.agent.Start(cmd.Context()); err != nil {
				return err
			}

			hub := ws.NewHub(rt.agent, rt.cfg.Server.ClientAuthToken)
			mux := http.NewServeMux()
			mux.HandleFunc(rt.cfg.Server.ClientPath, hub.HandleClient)
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})

			srv := &http.Server{Addr: rt.cfg.Server.ListenAddr, Handler: mux}
			errCh := make(chan error, 1)
			go func() {
				log.Printf("dicebridge listening on %s", rt.cfg.Server.ListenAddr)
				errCh <- srv.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				log.Printf("shutting down: signal=%v", sig)
				return srv.Shutdown(context.Background())
			}
		},
	}
}
