package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newLogger(w io.Writer, quiet bool) *log.Logger {
	if quiet {
		w = io.Discard
	}
	return log.New(w, "memcrud ", log.LstdFlags|log.Lmicroseconds)
}

// newRouter wires one Endpoint per configured prefix, the static pages, and the
// middleware chain.
func newRouter(cfg *Config, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	for _, ec := range cfg.Endpoints {
		var h http.Handler = NewEndpoint(ec.Prefix, ec.Policy(), NewCollection(ec.Seed...), logger, cfg.MaxBodyBytes)
		if ec.Auth {
			h = basicAuthMiddleware(cfg.Username, cfg.Password, cfg.Realm)(h)
		}
		mux.Handle(ec.Prefix, h)
		mux.Handle(ec.Prefix+"/", h)
	}

	static := NewStaticResponder(cfg.StaticDir, logger)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if static.Has(r.URL.Path) {
			static.ServeHTTP(w, r)
			return
		}
		writeError(w, r, http.StatusNotFound, "endpoint not found")
	})

	return requestIDMiddleware(loggingMiddleware(logger)(recoverMiddleware(logger)(mux)))
}

// run serves cfg until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg *Config, logger *log.Logger) error {
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(cfg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("server is listening on %s", server.Addr)
		for _, ec := range cfg.Endpoints {
			logger.Printf("endpoint %s (auth=%t)", ec.Prefix, ec.Auth)
		}
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "could not listen")
		}
		return nil
	case <-ctx.Done():
	}
	logger.Println("server is shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	logger.Println("server stopped")
	return nil
}
