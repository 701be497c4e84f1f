// Package server is the HTTP front of the offline cache. It hands browser
// traffic to the active manager version and exposes a small control surface.
package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/offline"
	"github.com/huangsam/shellcache/schema"
	"github.com/sirupsen/logrus"
)

// SourceHeader tells the client how a response was produced.
const SourceHeader = "X-Shellcache-Source"

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxMessageBytes   = 64 << 10
)

// Server routes requests into a registration.
type Server struct {
	cfg    *contract.Config
	reg    *offline.Registration
	store  contract.CacheStore
	log    *logrus.Logger
	engine *gin.Engine
	proxy  *httputil.ReverseProxy
	hosts  map[string]struct{} // authorities that name the served site
}

// New builds the gin engine for cfg. The config must name an origin.
func New(cfg *contract.Config, reg *offline.Registration, store contract.CacheStore, log *logrus.Logger) (*Server, error) {
	if err := cfg.RequireOrigin(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:    cfg,
		reg:    reg,
		store:  store,
		log:    log,
		engine: gin.New(),
		hosts:  servedHosts(cfg),
	}
	s.proxy = s.newProxy()

	s.engine.RedirectTrailingSlash = false
	s.engine.RedirectFixedPath = false
	s.engine.Use(gin.Recovery(), LoggerMiddleware(log))

	control := s.engine.Group(cfg.ControlPrefix)
	control.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	control.GET("/status", s.handleStatus)
	control.POST("/message", s.handleMessage)
	control.POST("/sync/:tag", s.handleSync)

	s.engine.NoRoute(s.handleIntercept)
	return s, nil
}

// Handler returns the engine as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and shuts down gracefully when ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.WithFields(logrus.Fields{
		"addr":   ln.Addr().String(),
		"origin": s.cfg.Origin.String(),
	}).Info("server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	}
}

// servedHosts returns the hosts an absolute-form request may name and still
// target this site: the origin and the address the front listens on.
func servedHosts(cfg *contract.Config) map[string]struct{} {
	hosts := map[string]struct{}{strings.ToLower(cfg.Origin.Host): {}}
	if host, _, err := net.SplitHostPort(cfg.Listen); err == nil && host != "" {
		hosts[strings.ToLower(cfg.Listen)] = struct{}{}
	}
	return hosts
}

func (s *Server) serves(host string) bool {
	_, ok := s.hosts[strings.ToLower(host)]
	return ok
}

// newProxy forwards pass-through traffic. Requests naming another host go
// to that host; everything else goes to the origin.
func (s *Server) newProxy() *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := s.cfg.Origin
			if in := pr.In.URL; in.Host != "" && !s.serves(in.Host) {
				target = &url.URL{Scheme: cmp.Or(in.Scheme, "http"), Host: in.Host}
			}
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.log.WithError(err).WithField("path", r.URL.Path).Warn("origin unreachable")
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

func (s *Server) handleIntercept(c *gin.Context) {
	// Host is taken from an absolute request URI as well, so it cannot
	// tell cross-origin requests apart; the URI's own host can.
	u := *c.Request.URL
	if u.Host != "" && s.serves(u.Host) {
		u.Scheme, u.Host = "", ""
	}
	req := &schema.Request{
		Method: c.Request.Method,
		URL:    &u,
		Header: c.Request.Header.Clone(),
		Origin: s.cfg.Origin.Host,
	}

	resp, source, err := s.reg.Fetch(c.Request.Context(), req)
	switch {
	case errors.Is(err, offline.ErrNotHandled), errors.Is(err, offline.ErrNoActiveVersion):
		c.Writer.Header().Set(SourceHeader, string(schema.PassthroughSource))
		s.proxy.ServeHTTP(c.Writer, c.Request)
		return
	case err != nil:
		s.log.WithError(err).WithField("key", req.Key()).Warn("request failed")
		c.String(http.StatusBadGateway, "offline and not cached")
		return
	}

	header := c.Writer.Header()
	for k, v := range resp.Header {
		header[k] = append([]string(nil), v...)
	}
	header.Set(SourceHeader, string(source))
	c.Writer.WriteHeader(resp.Status)
	_, _ = c.Writer.Write(resp.Body)
}

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.store.GetStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status.Classify(s.cfg.AppName)
	c.JSON(http.StatusOK, schema.ServerStatus{
		Registration: s.reg.Snapshot(),
		Store:        status,
	})
}

// handleMessage accepts any payload. Unknown or malformed messages are ignored.
func (s *Server) handleMessage(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := schema.ParseMessage(raw)
	s.reg.PostMessage(c.Request.Context(), msg)
	c.JSON(http.StatusAccepted, gin.H{
		"type":       msg.Type,
		"recognized": msg.Recognized(),
	})
}

func (s *Server) handleSync(c *gin.Context) {
	if err := s.reg.Sync(c.Request.Context(), c.Param("tag")); err != nil {
		if errors.Is(err, offline.ErrNoActiveVersion) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
