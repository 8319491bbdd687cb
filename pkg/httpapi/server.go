// Package httpapi serves the sensor over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/sds011.go/pkg/msgs"
	"github.com/robotalks/sds011.go/pkg/sds011"
)

// DefaultStreamInterval is how often the stream checks for new readings.
const DefaultStreamInterval = 100 * time.Millisecond

// Server is the HTTP API server.
type Server struct {
	Sensor         *sds011.Sensor
	Commander      sds011.Commander
	StreamInterval time.Duration

	srv *http.Server
}

// WorkingPeriodRequest is the body of POST /v1/working-period.
type WorkingPeriodRequest struct {
	Period *uint8 `json:"period" binding:"required"`
}

// New creates a Server listening on addr. Commands go through commander,
// metricsHandler is served on /metrics when not nil.
func New(addr string, sensor *sds011.Sensor, commander sds011.Commander, metricsHandler http.Handler) *Server {
	s := &Server{
		Sensor:         sensor,
		Commander:      commander,
		StreamInterval: DefaultStreamInterval,
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
	v1 := r.Group("/v1")
	v1.GET("/reading", s.getReading)
	v1.GET("/status", s.getStatus)
	v1.POST("/working-period", s.setWorkingPeriod)
	v1.POST("/sleep", s.command(commander.SetSleepMode))
	v1.POST("/wake", s.command(commander.WakeUp))
	v1.GET("/stream", gin.WrapH(websocket.Handler(s.stream)))
	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) getReading(c *gin.Context) {
	c.JSON(http.StatusOK, msgs.ReadingOf(s.Sensor))
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, msgs.StatusOf(s.Sensor))
}

func (s *Server) setWorkingPeriod(c *gin.Context) {
	var req WorkingPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period := *req.Period
	if period > sds011.MaxWorkingPeriod {
		period = sds011.MaxWorkingPeriod
	}
	s.reply(c, s.Commander.SetWorkingPeriod(period), gin.H{"period": period})
}

func (s *Server) command(fn func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.reply(c, fn(), nil)
	}
}

func (s *Server) reply(c *gin.Context, err error, body gin.H) {
	if err == nil {
		if body == nil {
			body = gin.H{}
		}
		body["status"] = sds011.SendOK.String()
		c.JSON(http.StatusOK, body)
		return
	}
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, sds011.ErrUnsupported):
		code = http.StatusNotImplemented
	case errors.Is(err, sds011.ErrNotInitialized):
		code = http.StatusServiceUnavailable
	case sds011.StatusOf(err) == sds011.SendTimedOut:
		code = http.StatusGatewayTimeout
	}
	c.JSON(code, gin.H{"status": sds011.StatusOf(err).String(), "error": err.Error()})
}

func (s *Server) stream(conn *websocket.Conn) {
	defer conn.Close()
	ticker := time.NewTicker(s.StreamInterval)
	defer ticker.Stop()
	var lastSeq uint32
	ctx := conn.Request().Context()
	for {
		if m, seq := s.Sensor.Store.Snapshot(); seq != lastSeq {
			lastSeq = seq
			if err := websocket.JSON.Send(conn, msgs.NewReading(s.Sensor, m, seq)); err != nil {
				glog.V(2).Infof("stream %s closed: %v", conn.Request().RemoteAddr, err)
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
