package oas

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Service is the immutable result of Router.Build: the finished OpenAPI
// document plus a dispatcher over the compiled routes. It implements
// http.Handler and can be mounted anywhere a handler goes.
type Service struct {
	spec       OpenAPISpec
	dispatcher *dispatcher
	handler    http.Handler
	specJSON   []byte
	specYAML   []byte
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Spec returns the OpenAPI document.
func (s *Service) Spec() OpenAPISpec {
	return s.spec
}

// WriteSpec writes the OpenAPI document as indented JSON to w.
func (s *Service) WriteSpec(w io.Writer) error {
	_, err := w.Write(s.specJSON)
	return err
}

// WriteSpecYAML writes the OpenAPI document as YAML to w.
func (s *Service) WriteSpecYAML(w io.Writer) error {
	_, err := w.Write(s.specYAML)
	return err
}

// ListenAndServe runs an HTTP server for the service until ctx is
// canceled, then shuts down gracefully with a 30 second drain window.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
