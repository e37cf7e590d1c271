package offline

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmcdole/drinks/internal/domain"
)

// Control endpoints live under this prefix; every other path is proxied
const controlPrefix = "/__proxy"

// SourceHeader reports how a proxied response was produced
const SourceHeader = "X-Drinks-Cache"

// hopHeaders are not copied from upstream responses
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// Server exposes a Proxy over HTTP
type Server struct {
	proxy  *Proxy
	hub    *Hub
	logger *slog.Logger
	engine *gin.Engine
}

func NewServer(proxy *Proxy, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		proxy:  proxy,
		hub:    hub,
		logger: logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	ctl := r.Group(controlPrefix)
	ctl.GET("/status", s.handleStatus)
	ctl.POST("/message", s.handleMessage)
	ctl.GET("/ws", s.handleWebsocket)

	r.NoRoute(s.handleProxy)

	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"source", c.Writer.Header().Get(SourceHeader),
			"latency", time.Since(start))
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.proxy.Status())
}

func (s *Server) handleMessage(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		return
	}

	reply, err := s.proxy.HandleMessage(c.Request.Context(), msg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownMessage) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if reply == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handleWebsocket(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request, s.proxy)
}

// handleProxy serves every non-control request through the proxy
func (s *Server) handleProxy(c *gin.Context) {
	r := c.Request
	req := &domain.Request{
		Method:   r.Method,
		URL:      s.targetURL(r),
		Header:   r.Header.Clone(),
		Navigate: IsNavigation(r),
	}

	resp, source, err := s.proxy.Handle(r.Context(), req)
	if err != nil {
		s.logger.Warn("upstream request failed", "url", req.URL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		return
	}

	h := c.Writer.Header()
	for name, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			h.Add(name, v)
		}
	}
	h.Set(SourceHeader, source.String())

	c.Status(resp.Status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := c.Writer.Write(resp.Body); err != nil {
		s.logger.Debug("failed to write response", "url", req.URL, "error", err)
	}
}

// targetURL returns the absolute upstream URL for r. Absolute-form requests
// (a client using this server as an HTTP proxy) keep their URL; everything
// else is relative to the app origin.
func (s *Server) targetURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return strings.TrimSuffix(s.proxy.origin.String(), "/") + r.URL.RequestURI()
}
