package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-poker/internal/config"
	"github.com/mmuslimabdulj/goat-poker/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/rs/zerolog/log"
)

// registerAttempts bounds retries when a channel is torn down between lookup
// and registration
const registerAttempts = 3

type Handler struct {
	roomManager *ws.RoomManager
	cfg         *config.Config
	upgrader    websocket.Upgrader
}

func NewHandler(rm *ws.RoomManager, cfg *config.Config) *Handler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handler{
		roomManager: rm,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.IsOriginAllowed(r.Header.Get("Origin"))
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleCreateRoom returns a fresh room code no active channel is using
func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var code string
	for i := 0; i < 10; i++ {
		candidate, err := domain.GenerateRoomCode(h.cfg.RoomCodeLength)
		if err != nil {
			log.Error().Err(err).Msg("generate room code")
			http.Error(w, "Failed to generate room code", http.StatusInternalServerError)
			return
		}
		if !h.roomManager.RoomExists(domain.ChannelName(candidate)) {
			code = candidate
			break
		}
	}
	if code == "" {
		http.Error(w, "No free room code", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"code":    code,
		"channel": domain.ChannelName(code),
	})
}

// HandleJoinRoom validates a room code and reports who is there
func (h *Handler) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	code := domain.NormalizeRoomCode(req.Code)
	if !domain.ValidRoomCode(code) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid room code",
		})
		return
	}

	channel := domain.ChannelName(code)
	writeJSON(w, http.StatusOK, map[string]any{
		"code":    code,
		"channel": channel,
		"online":  h.roomManager.Online(channel),
	})
}

// HandleHealth reports liveness and the number of active channels
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  h.roomManager.GetRoomCount(),
	})
}

// HandleWebSocket upgrades HTTP to WebSocket and subscribes the connection
// to ?channel= under presence key ?key=
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if !ws.IsValidChannelName(channel) {
		http.Error(w, "Valid channel required", http.StatusBadRequest)
		return
	}

	key := r.URL.Query().Get("key")
	if !ws.IsValidPresenceKey(key) {
		http.Error(w, "Invalid presence key", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("channel", channel).Msg("websocket upgrade failed")
		return
	}

	var client *ws.Client
	for i := 0; i < registerAttempts; i++ {
		room := h.roomManager.GetOrCreateRoom(channel)
		c := ws.NewClient(room.Hub, conn, key)
		c.SetMaxMessageSize(h.cfg.MaxMessageSize)
		if room.Hub.Register(c) {
			client = c
			break
		}
	}
	if client == nil {
		log.Warn().Str("channel", channel).Msg("could not register client")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "channel unavailable"))
		conn.Close()
		return
	}

	// Start read/write pumps in goroutines
	go client.WritePump()
	go client.ReadPump()
}
