package metrics

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes metrics via HTTP.
type Exporter struct {
	addr      string
	startTime time.Time
	server    *http.Server

	mu       sync.Mutex
	listener net.Listener
	stop     chan struct{}
}

// NewExporter creates a metrics exporter listening on addr.
func NewExporter(addr string) *Exporter {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Exporter{
		addr:      addr,
		startTime: time.Now(),
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		stop: make(chan struct{}),
	}
}

// Start begins serving in the background. It returns once the listener is
// bound.
func (e *Exporter) Start() error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.listener = ln
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			Uptime.Set(time.Since(e.startTime).Seconds())
			select {
			case <-ticker.C:
			case <-e.stop:
				return
			}
		}
	}()

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}

// Stop stops the exporter.
func (e *Exporter) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.stop:
		return nil
	default:
		close(e.stop)
	}
	return e.server.Close()
}
