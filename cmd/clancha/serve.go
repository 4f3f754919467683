package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	"clancha/handler"
	"clancha/internal/bootstrap"
	"clancha/internal/metrics"
)

const (
	rewritePath  = "/api/rewrite-message"
	maxBodyBytes = 64 << 10
)

func newServeCmd() *cobra.Command {
	var (
		addr         string
		generatorURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rewrite endpoint over HTTP",
		Long: `serve exposes POST ` + rewritePath + ` and GET /metrics.
Configuration is read from the same environment variables as the Lambda.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.FromEnv(os.LookupEnv)
			if err != nil {
				return err
			}
			logger := bootstrap.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := bootstrap.AWSDeps(ctx, cfg, logger)
			if err != nil {
				return err
			}
			deps.GeneratorBaseURL = generatorURL
			app, err := bootstrap.Build(cfg, deps)
			if err != nil {
				return err
			}
			return serve(ctx, addr, newMux(app.Handler, app.Metrics), logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&generatorURL, "generator-url", "", "Override the generator API base URL")
	return cmd
}

func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMux(h *handler.Handler, m *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+rewritePath, func(w http.ResponseWriter, r *http.Request) {
		event, err := toProxyRequest(r)
		if err != nil {
			http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
			return
		}
		resp, err := h.Handle(r.Context(), event)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	})
	mux.Handle("GET /metrics", m.Handler())
	return mux
}

// toProxyRequest converts r into the API Gateway event the Lambda receives.
func toProxyRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return events.APIGatewayProxyRequest{}, errors.New("body exceeds limit")
	}
	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}
	event := events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		event.RequestContext.Identity.SourceIP = host
	}
	return event, nil
}
