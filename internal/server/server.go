// Package server exposes the converter over HTTP. POST /convert runs a
// single file or a batch, GET /events streams progress over a websocket.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ZacxDev/video-compressor/internal/events"
	"github.com/ZacxDev/video-compressor/internal/processor"
	"github.com/ZacxDev/video-compressor/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const writeTimeout = 10 * time.Second

// Converter is the part of processor.Converter the server drives
type Converter interface {
	RunBatch(ctx context.Context, inputs []processor.Input) []types.ConversionResult
	Convert(ctx context.Context, in processor.Input) types.ConversionResult
}

// Subscriber hands out progress subscriptions
type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
}

// Server wires HTTP routes to a converter and an event source
type Server struct {
	converter  Converter
	events     Subscriber
	logger     hclog.Logger
	wsUpgrader websocket.Upgrader
}

// ConvertRequest is the body of POST /convert. InputPath is either a single
// path or a list of paths; the response shape follows it.
type ConvertRequest struct {
	InputPath json.RawMessage `json:"inputPath"`
	OutputDir string          `json:"outputDir"`
}

// New creates a server
func New(converter Converter, subscriber Subscriber, logger hclog.Logger) *Server {
	return &Server{
		converter: converter,
		events:    subscriber,
		logger:    logger.Named("server"),
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	s.RegisterRoutes(&router.RouterGroup)
	return router
}

// RegisterRoutes adds the server's endpoints to router
func (s *Server) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/healthz", s.Healthz)
	router.POST("/convert", s.HandleConvert)
	router.GET("/events", s.HandleEvents)
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Healthz reports liveness
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleConvert runs the requested conversions and answers with one result
// object for a single path or a result list for a list of paths.
func (s *Server) HandleConvert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.OutputDir == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "outputDir is required"})
		return
	}

	paths, single, err := decodeInputPaths(req.InputPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if single {
		s.logger.Info("convert request", "input", paths[0])
		c.JSON(http.StatusOK, s.converter.Convert(c.Request.Context(), processor.Input{
			InputPath: paths[0],
			OutputDir: req.OutputDir,
		}))
		return
	}

	inputs := make([]processor.Input, len(paths))
	for i, p := range paths {
		inputs[i] = processor.Input{InputPath: p, OutputDir: req.OutputDir}
	}
	s.logger.Info("batch request", "count", len(inputs))
	c.JSON(http.StatusOK, s.converter.RunBatch(c.Request.Context(), inputs))
}

func decodeInputPaths(raw json.RawMessage) ([]string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false, errors.New("inputPath is required")
	}

	if raw[0] == '[' {
		var paths []string
		if err := json.Unmarshal(raw, &paths); err != nil {
			return nil, false, errors.Wrap(err, "inputPath must be a string or a list of strings")
		}
		for _, p := range paths {
			if p == "" {
				return nil, false, errors.New("inputPath entries must not be empty")
			}
		}
		return paths, false, nil
	}

	var path string
	if err := json.Unmarshal(raw, &path); err != nil {
		return nil, false, errors.Wrap(err, "inputPath must be a string or a list of strings")
	}
	if path == "" {
		return nil, false, errors.New("inputPath is required")
	}
	return []string{path}, true, nil
}

// HandleEvents upgrades to a websocket and forwards every progress event as
// a JSON text message until the client goes away.
func (s *Server) HandleEvents(c *gin.Context) {
	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.events.Subscribe()
	defer cancel()

	// reader loop only notices the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("events client connected", "remote", c.Request.RemoteAddr)
	for {
		select {
		case <-closed:
			s.logger.Debug("events client disconnected", "remote", c.Request.RemoteAddr)
			return
		case <-c.Request.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("events client write failed", "error", err)
				return
			}
		}
	}
}
