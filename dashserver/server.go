// Package dashserver serves the dashboard to browsers and accepts pushed
// telemetry. HTTP carries the static UI, the current scene, an SSE stream of
// scene events, rate history and Prometheus metrics; gRPC carries the
// TelemetryIngest service.
package dashserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/history"
	"github.com/xiaonanln/dtnview/util/logger"
	"github.com/xiaonanln/dtnview/util/metrics"
)

var log = logger.NewLogger("dashserver")

// sseHeartbeatInterval is the interval between SSE heartbeat events
const sseHeartbeatInterval = 30 * time.Second

// sseBufferSize is how many events a slow SSE client may fall behind before
// events are dropped for it.
const sseBufferSize = 100

// SSEClient represents a connected SSE client
type SSEClient struct {
	id        string
	eventChan chan dashboard.Event
	done      chan struct{}
}

// Config holds the configuration for Server
type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	StaticDir string
	// HistoryLimit caps the points returned by one /history query.
	HistoryLimit int
}

// Server hosts the HTTP and gRPC endpoints of the dashboard.
type Server struct {
	dash         *dashboard.Dashboard
	store        history.Store
	cfg          Config
	httpServer   *http.Server
	grpcServer   *grpc.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	sseClientsMu sync.RWMutex
	sseClients   map[string]*SSEClient
}

// New creates a Server and subscribes it to dash. store may be nil, in which
// case the history endpoints answer 404.
func New(dash *dashboard.Dashboard, store history.Store, cfg Config) *Server {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10000
	}
	s := &Server{
		dash:         dash,
		store:        store,
		cfg:          cfg,
		shutdownChan: make(chan struct{}),
		sseClients:   make(map[string]*SSEClient),
	}
	dash.AddObserver(s)
	return s
}

// OnDashboardEvent implements the dashboard.Observer interface
func (s *Server) OnDashboardEvent(event dashboard.Event) {
	s.sseClientsMu.RLock()
	clients := make([]*SSEClient, 0, len(s.sseClients))
	for _, c := range s.sseClients {
		clients = append(clients, c)
	}
	s.sseClientsMu.RUnlock()

	for _, client := range clients {
		select {
		case client.eventChan <- event:
		case <-client.done:
		default:
			log.Warnf("Event dropped for SSE client %s: channel full", client.id)
		}
	}
}

// SSEClientCount returns the number of connected SSE clients.
func (s *Server) SSEClientCount() int {
	s.sseClientsMu.RLock()
	defer s.sseClientsMu.RUnlock()
	return len(s.sseClients)
}

// handleEventsStream handles GET /events/stream for Server-Sent Events (SSE)
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed for SSE", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported by server", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := &SSEClient{
		id:        uuid.NewString(),
		eventChan: make(chan dashboard.Event, sseBufferSize),
		done:      make(chan struct{}),
	}
	s.sseClientsMu.Lock()
	s.sseClients[client.id] = client
	s.sseClientsMu.Unlock()
	metrics.RecordSSEClientConnected()
	log.Infof("SSE client connected: %s", client.id)

	defer func() {
		close(client.done)
		s.sseClientsMu.Lock()
		delete(s.sseClients, client.id)
		s.sseClientsMu.Unlock()
		metrics.RecordSSEClientDisconnected()
		log.Infof("SSE client disconnected: %s", client.id)
	}()

	// A late joiner starts from the current scene. It may also receive the
	// event that produced it; generations let the browser skip the repeat.
	initial := struct {
		ClientID   string      `json:"clientId"`
		Generation uint64      `json:"generation"`
		Scene      interface{} `json:"scene"`
	}{ClientID: client.id}
	if sc := s.dash.Scene(); sc != nil {
		initial.Generation = sc.Generation
		initial.Scene = sc
	}
	if err := writeSSEEvent(w, flusher, "initial", initial); err != nil {
		log.Warnf("Failed to send initial scene to SSE client %s: %v", client.id, err)
		return
	}

	heartbeatTicker := time.NewTicker(sseHeartbeatInterval)
	defer heartbeatTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-heartbeatTicker.C:
			if err := writeSSEEvent(w, flusher, "heartbeat", struct{}{}); err != nil {
				log.Warnf("Failed to send heartbeat to SSE client %s: %v", client.id, err)
				return
			}
		case event := <-client.eventChan:
			if err := writeSSEEvent(w, flusher, string(event.Type), event); err != nil {
				log.Warnf("Failed to send event to SSE client %s: %v", client.id, err)
				return
			}
		}
	}
}

// writeSSEEvent writes a Server-Sent Event to the response writer
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	flusher.Flush()
	return nil
}

// ServeHTTP starts the HTTP server in a goroutine and returns immediately.
// done receives a value once the server has stopped.
func (s *Server) ServeHTTP(done chan<- struct{}) error {
	l, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTPAddr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Infof("HTTP on %s (serving %s)", l.Addr(), s.cfg.StaticDir)

	go func() {
		<-s.shutdownChan
		log.Infof("Shutting down HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf("HTTP server shutdown error: %v", err)
		}
	}()

	go func() {
		if err := s.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
		log.Infof("HTTP server stopped")
		done <- struct{}{}
	}()

	return nil
}

// ServeGRPC starts the gRPC server in a goroutine and returns immediately.
// done receives a value once the server has stopped.
func (s *Server) ServeGRPC(done chan<- struct{}) error {
	l, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddr, err)
	}
	s.grpcServer = grpc.NewServer()
	RegisterIngestServer(s.grpcServer, NewIngestService(s.dash))
	reflection.Register(s.grpcServer)
	log.Infof("gRPC on %s", l.Addr())

	go func() {
		<-s.shutdownChan
		log.Infof("Shutting down gRPC server...")
		s.grpcServer.GracefulStop()
	}()

	go func() {
		if err := s.grpcServer.Serve(l); err != nil {
			log.Errorf("gRPC server error: %v", err)
		}
		log.Infof("gRPC server stopped")
		done <- struct{}{}
	}()

	return nil
}

// Shutdown initiates graceful shutdown of all servers
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.dash.RemoveObserver(s)
		close(s.shutdownChan)
	})
}
