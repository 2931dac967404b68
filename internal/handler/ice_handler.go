package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/weiawesome/classroom-signal/internal/config"
)

const defaultSTUN = "stun:stun.l.google.com:19302"

// ICEServer is one entry of an RTCPeerConnection iceServers list.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEHandler serves ICE server configuration for the browsers' direct
// connection attempts.
type ICEHandler struct {
	iceServers []ICEServer
}

// NewICEHandler creates a new ICE handler. A public STUN server is prepended
// when the configuration has none.
func NewICEHandler(cfg config.WebRTCConfig) *ICEHandler {
	servers := make([]ICEServer, 0, len(cfg.ICEServers)+1)
	hasSTUN := false
	for _, s := range cfg.ICEServers {
		for _, url := range s.URLs {
			if strings.HasPrefix(url, "stun:") || strings.HasPrefix(url, "stuns:") {
				hasSTUN = true
			}
		}
		servers = append(servers, ICEServer{URLs: s.URLs, Username: s.Username, Credential: s.Credential})
	}
	if !hasSTUN {
		servers = append([]ICEServer{{URLs: []string{defaultSTUN}}}, servers...)
	}

	return &ICEHandler{
		iceServers: servers,
	}
}

// ServeHTTP handles ICE server requests.
func (h *ICEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"iceServers": h.iceServers,
	})
}

// RegisterRoutes registers the ICE routes.
func (h *ICEHandler) RegisterRoutes(r *mux.Router) {
	r.Handle("/api/ice-servers", h).Methods(http.MethodGet, http.MethodOptions)
}
