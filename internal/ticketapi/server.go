// Package ticketapi implements the Bedel backend HTTP API for support
// tickets and FAQ lookups.
package ticketapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB   *gorm.DB
	Port int
	Out  io.Writer
}

// Start launches the backend API server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("ticketapi: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts.DB)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Bedel API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ticketapi: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered. Exported for
// httptest-based testing.
func NewRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, db)
	return router
}
