package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/hub"
	"github.com/weiawesome/classroom-signal/internal/registry"
	"github.com/weiawesome/classroom-signal/pkg/response"
)

// HTTPHandler serves read-only presence queries.
type HTTPHandler struct {
	hub *hub.Hub
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(h *hub.Hub) *HTTPHandler {
	return &HTTPHandler{
		hub: h,
	}
}

// RoomsResponse lists the active rooms.
type RoomsResponse struct {
	Rooms []registry.RoomSummary `json:"rooms"`
	Total int                    `json:"total"`
}

// ParticipantsResponse lists who is visibly present in a room.
type ParticipantsResponse struct {
	RoomID       string                   `json:"room_id"`
	Participants []domain.ParticipantInfo `json:"participants"`
	Total        int                      `json:"total"`
}

// ListRooms handles GET /api/v1/rooms
func (h *HTTPHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.hub.Rooms()
	if rooms == nil {
		rooms = []registry.RoomSummary{}
	}
	response.Success(w, RoomsResponse{
		Rooms: rooms,
		Total: len(rooms),
	})
}

// GetParticipants handles GET /api/v1/rooms/{room_id}/participants
// Stealth observers are never listed.
func (h *HTTPHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	if roomID == "" {
		response.BadRequest(w, "room_id is required")
		return
	}

	members, ok := h.hub.Members(roomID)
	if !ok {
		response.NotFound(w, "room not found")
		return
	}

	infos := make([]domain.ParticipantInfo, 0, len(members))
	for _, p := range members {
		infos = append(infos, p.Info())
	}
	response.Success(w, ParticipantsResponse{
		RoomID:       roomID,
		Participants: infos,
		Total:        len(infos),
	})
}

// HealthResponse reports liveness together with the hub counters.
type HealthResponse struct {
	Status string    `json:"status"`
	Hub    hub.Stats `json:"hub"`
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Hub: h.hub.Stats()})
}

// RegisterRoutes registers the presence and health routes.
func (h *HTTPHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/rooms", h.ListRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room_id}/participants", h.GetParticipants).Methods(http.MethodGet)
}
