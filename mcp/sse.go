package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/foomo/mdbook-confluence/service/vo"
	"go.uber.org/zap"
)

// SSEEvent represents an SSE event structure
type SSEEvent struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func newSSEEvent(name string, data any) SSEEvent {
	now := time.Now()
	return SSEEvent{
		ID:        fmt.Sprintf("%s_%d", name, now.UnixNano()),
		Event:     name,
		Data:      data,
		Timestamp: now,
	}
}

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID       string
	Writer   http.ResponseWriter
	Flusher  http.Flusher
	Done     chan struct{}
	LastSeen time.Time

	mu sync.Mutex
}

// MCPSSEServer streams sync events to connected clients
type MCPSSEServer struct {
	logger       *zap.Logger
	publisher    Publisher
	config       *SSEServerConfig
	clients      map[string]*SSEClient
	clientsMutex sync.RWMutex
	broadcast    chan SSEEvent
	nextClientID int
}

// SSEServerConfig holds configuration for the SSE server
type SSEServerConfig struct {
	KeepaliveInterval time.Duration
	BufferSize        int
	ClientTimeout     time.Duration
}

// DefaultSSEServerConfig returns the default configuration for SSE server
func DefaultSSEServerConfig() *SSEServerConfig {
	return &SSEServerConfig{
		KeepaliveInterval: 30 * time.Second,
		BufferSize:        100,
		ClientTimeout:     60 * time.Second,
	}
}

// NewMCPSSEServer creates a new SSE server. publisher may be nil, in which
// case /sse/publish is unavailable.
func NewMCPSSEServer(logger *zap.Logger, publisher Publisher, config *SSEServerConfig) *MCPSSEServer {
	if config == nil {
		config = DefaultSSEServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sseServer := &MCPSSEServer{
		logger:    logger,
		publisher: publisher,
		config:    config,
		clients:   make(map[string]*SSEClient),
		broadcast: make(chan SSEEvent, config.BufferSize),
	}

	go sseServer.broadcastLoop()

	return sseServer
}

// Observer broadcasts every sync event to all connected clients.
func (s *MCPSSEServer) Observer() vo.Observer {
	return func(event vo.SyncEvent) {
		s.broadcastEvent(newSSEEvent("sync", event))
	}
}

// Publisher wraps the configured publisher so that its events are also
// broadcast.
func (s *MCPSSEServer) Publisher() Publisher {
	if s.publisher == nil {
		return nil
	}
	broadcast := s.Observer()
	return PublisherFunc(func(ctx context.Context, renderContextPath string, observer vo.Observer) error {
		if r, ok := requestFromContext(ctx); ok {
			s.logger.Info("publish requested",
				zap.String("remoteAddr", r.RemoteAddr),
				zap.String("renderContext", renderContextPath),
			)
		}
		return s.publisher.Publish(ctx, renderContextPath, func(event vo.SyncEvent) {
			broadcast(event)
			if observer != nil {
				observer(event)
			}
		})
	})
}

// broadcastLoop handles broadcasting events to all connected clients
func (s *MCPSSEServer) broadcastLoop() {
	for event := range s.broadcast {
		var failed []string
		s.clientsMutex.RLock()
		for clientID, client := range s.clients {
			select {
			case <-client.Done:
				failed = append(failed, clientID)
			default:
				if err := s.sendEventToClient(client, event); err != nil {
					s.logger.Error("failed to send event to client", zap.String("clientID", clientID), zap.Error(err))
					failed = append(failed, clientID)
				}
			}
		}
		s.clientsMutex.RUnlock()
		for _, clientID := range failed {
			s.removeClient(clientID)
		}
	}
}

func writeEvent(w io.Writer, event SSEEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Event, string(eventJSON))
	return err
}

// sendEventToClient sends an SSE event to a specific client
func (s *MCPSSEServer) sendEventToClient(client *SSEClient, event SSEEvent) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if err := writeEvent(client.Writer, event); err != nil {
		return err
	}
	client.Flusher.Flush()
	client.LastSeen = time.Now()
	return nil
}

// addClient adds a new SSE client
func (s *MCPSSEServer) addClient(w http.ResponseWriter) *SSEClient {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return nil
	}

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	s.nextClientID++
	clientID := fmt.Sprintf("client_%d_%d", time.Now().Unix(), s.nextClientID)

	client := &SSEClient{
		ID:       clientID,
		Writer:   w,
		Flusher:  flusher,
		Done:     make(chan struct{}),
		LastSeen: time.Now(),
	}

	connectEvent := newSSEEvent("connected", map[string]string{"clientID": clientID, "message": "Connected to sync event stream"})
	if err := s.sendEventToClient(client, connectEvent); err != nil {
		s.logger.Error("failed to send connection event", zap.String("clientID", clientID), zap.Error(err))
		return nil
	}

	s.clients[clientID] = client
	s.logger.Info("SSE client connected", zap.String("clientID", clientID))
	return client
}

// removeClient removes a client from the server
func (s *MCPSSEServer) removeClient(clientID string) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	if client, exists := s.clients[clientID]; exists {
		close(client.Done)
		delete(s.clients, clientID)
		s.logger.Info("SSE client disconnected", zap.String("clientID", clientID))
	}
}

// broadcastEvent sends an event to all connected clients
func (s *MCPSSEServer) broadcastEvent(event SSEEvent) {
	select {
	case s.broadcast <- event:
	default:
		s.logger.Warn("broadcast channel full, dropping event", zap.String("eventID", event.ID))
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// HandleSSE subscribes the caller to all sync events
func (s *MCPSSEServer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	setSSEHeaders(w)
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	client := s.addClient(w)
	if client == nil {
		return
	}

	ctx := r.Context()
	go func() {
		ticker := time.NewTicker(s.config.KeepaliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.removeClient(client.ID)
				return
			case <-client.Done:
				return
			case <-ticker.C:
				keepaliveEvent := newSSEEvent("keepalive", map[string]any{"timestamp": time.Now()})
				if err := s.sendEventToClient(client, keepaliveEvent); err != nil {
					s.removeClient(client.ID)
					return
				}
			}
		}
	}()

	<-client.Done
}

// HandlePublishSSE runs a publish and streams its events on the response
func (s *MCPSSEServer) HandlePublishSSE(w http.ResponseWriter, r *http.Request) {
	publisher := s.Publisher()
	if publisher == nil {
		http.Error(w, "Publisher not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if request.RenderContext == "" {
		http.Error(w, "renderContext is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)

	// sync events arrive from concurrent goroutines
	var mu sync.Mutex
	send := func(event SSEEvent) {
		mu.Lock()
		defer mu.Unlock()
		if err := writeEvent(w, event); err != nil {
			s.logger.Debug("failed to write publish event", zap.Error(err))
			return
		}
		flusher.Flush()
	}

	send(newSSEEvent("publish_start", map[string]string{"renderContext": request.RenderContext}))

	err := publisher.Publish(r.Context(), request.RenderContext, func(event vo.SyncEvent) {
		send(newSSEEvent("sync", event))
	})
	if err != nil {
		s.logger.Error("publish failed", zap.String("renderContext", request.RenderContext), zap.Error(err))
		send(newSSEEvent("publish_error", map[string]string{"error": err.Error()}))
		return
	}
	send(newSSEEvent("publish_complete", map[string]string{"status": "completed"}))
}

// GetConnectedClients returns information about connected clients
func (s *MCPSSEServer) GetConnectedClients() []map[string]any {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	clients := make([]map[string]any, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.Lock()
		lastSeen := client.LastSeen
		client.mu.Unlock()
		clients = append(clients, map[string]any{
			"id":        client.ID,
			"lastSeen":  lastSeen,
			"connected": time.Since(lastSeen) < s.config.ClientTimeout,
		})
	}
	return clients
}

// GetStats returns server statistics
func (s *MCPSSEServer) GetStats() map[string]any {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	return map[string]any{
		"connectedClients": len(s.clients),
		"bufferSize":       len(s.broadcast),
		"serverVersion":    Version,
	}
}
