// Package web serves the login form over HTTP with gin. It adapts form posts
// to services.FormRequest values and renders the outcome; all credential
// logic lives in the services package.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/logging"
	"github.com/dmitrijs2005/formauth/internal/server/services"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

const shutdownTimeout = 5 * time.Second

// Credentials is the part of the credential service the handlers use.
type Credentials interface {
	Handle(ctx context.Context, req services.FormRequest) (*services.Result, error)
	CurrentUser(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
}

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

// Options tune cookies issued by the server.
type Options struct {
	SecretKey     string
	SecureCookies bool
	SessionTTL    time.Duration
}

// Server wraps the gin engine and the underlying http.Server.
type Server struct {
	addr    string
	engine  *gin.Engine
	creds   Credentials
	health  HealthFunc
	logger  logging.Logger
	options Options
}

// NewServer builds the router. A nil health func always reports healthy.
func NewServer(addr string, creds Credentials, health HealthFunc, logger logging.Logger, opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:    addr,
		creds:   creds,
		health:  health,
		logger:  logger.With("module", "web"),
		options: opts,
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.Use(requestLogger(s.logger), recovery(s.logger))

	store := cookie.NewStore([]byte(opts.SecretKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(common.FlashCookieName, store))

	engine.GET("/", s.showForm)
	engine.POST("/", s.submitForm)
	engine.GET(common.DashboardPath, s.dashboard)
	engine.GET("/logout", s.logout)
	engine.POST("/logout", s.logout)
	engine.GET("/healthz", s.healthz)

	s.engine = engine
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "HTTP server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}
