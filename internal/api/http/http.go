// Package http serves the status API: the state of the managed server
// process, the configured receivers, and recently dispatched samples.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hsharrison/govrpn/internal/metrics"
	"github.com/hsharrison/govrpn/pkg/vrpn"
)

type Config struct {
	Addr    string
	Timeout time.Duration
}

// StatusSource exposes the state of the managed server.
type StatusSource interface {
	Running() bool
	Pid() int
	Uptime() time.Duration
	Receivers() []*vrpn.Receiver
}

// SampleSource queries recently dispatched samples.
type SampleSource interface {
	Recent(receiver string, limit int) ([]*vrpn.Report, error)
}

type Http struct {
	config *Config
	server *http.Server
}

func New(status StatusSource, samples SampleSource, metrics *metrics.Metrics, config *Config) *Http {
	s := &server{status: status, samples: samples}

	r := gin.Default()
	r.Use(func(c *gin.Context) {
		c.Next()
		metrics.ApiTotal.WithLabelValues(c.FullPath(), strconv.Itoa(c.Writer.Status())).Inc()
	})

	r.GET("/status", s.readStatus)
	r.GET("/receivers", s.listReceivers)
	r.GET("/receivers/:name", s.readReceiver)
	r.GET("/receivers/:name/samples", s.listReceiverSamples)
	r.GET("/samples", s.listSamples)

	return &Http{
		config: config,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: r,
		},
	}
}

func (h *Http) Start(errors chan<- error) {
	slog.Info("starting http server", "addr", h.config.Addr)
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errors <- err
	}
}

func (h *Http) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	return h.server.Shutdown(ctx)
}

func (h *Http) String() string {
	return "http"
}

// Handler exposes the router, used by tests.
func (h *Http) Handler() http.Handler {
	return h.server.Handler
}

type server struct {
	status  StatusSource
	samples SampleSource
}

type receiverView struct {
	Name       string `json:"name"`
	DeviceType string `json:"deviceType"`
	Class      string `json:"class"`
	Sensors    int    `json:"sensors"`
	Connected  bool   `json:"connected"`
}

func newReceiverView(r *vrpn.Receiver) *receiverView {
	return &receiverView{
		Name:       r.Name(),
		DeviceType: r.DeviceType(),
		Class:      r.Class().String(),
		Sensors:    r.NumSensors(),
		Connected:  r.Connected(),
	}
}

func (s *server) readStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":   s.status.Running(),
		"pid":       s.status.Pid(),
		"uptimeMs":  s.status.Uptime().Milliseconds(),
		"receivers": len(s.status.Receivers()),
	})
}

func (s *server) listReceivers(c *gin.Context) {
	receivers := s.status.Receivers()

	views := make([]*receiverView, len(receivers))
	for i, r := range receivers {
		views[i] = newReceiverView(r)
	}

	c.JSON(http.StatusOK, gin.H{"receivers": views})
}

func (s *server) readReceiver(c *gin.Context) {
	r := s.findReceiver(c.Param("name"))
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found"})
		return
	}

	c.JSON(http.StatusOK, newReceiverView(r))
}

func (s *server) listReceiverSamples(c *gin.Context) {
	r := s.findReceiver(c.Param("name"))
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found"})
		return
	}

	s.sendSamples(c, r.Name())
}

func (s *server) listSamples(c *gin.Context) {
	s.sendSamples(c, "")
}

func (s *server) sendSamples(c *gin.Context, receiver string) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	samples, err := s.samples.Recent(receiver, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"samples": samples})
}

func (s *server) findReceiver(name string) *vrpn.Receiver {
	for _, r := range s.status.Receivers() {
		if r.Name() == name {
			return r
		}
	}
	return nil
}
