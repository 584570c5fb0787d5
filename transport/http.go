package transport

import (
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// senderIDHeader identifies the logical session a request belongs to
// (§4.1.3); unlike USB/serial there is no physical link to key sessions by.
const senderIDHeader = "beeblink-sender-id"

// HTTPServer exposes the framing-free HTTP link: POST /request carries one
// packet per call, GET /beeblink.rom serves the ROM image. Grounded on
// rclone's lib/http package, which also wraps a chi.Router behind a small
// server type rather than wiring net/http directly into callers.
type HTTPServer struct {
	router  chi.Router
	rom     []byte
	handler func(sessionID string, p Packet) Packet

	mu       sync.Mutex
	sessions map[string]bool // sender ids seen, for diagnostics only
}

// NewHTTPServer builds the router. handler is invoked once per POST
// /request with the sender id and decoded packet, and must return the
// response packet; rom is served verbatim for GET /beeblink.rom.
func NewHTTPServer(rom []byte, handler func(sessionID string, p Packet) Packet) *HTTPServer {
	s := &HTTPServer{
		rom:      rom,
		handler:  handler,
		sessions: map[string]bool{},
	}
	r := chi.NewRouter()
	r.Post("/request", s.serveRequest)
	r.Get("/beeblink.rom", s.serveROM)
	s.router = r
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *HTTPServer) serveRequest(w http.ResponseWriter, r *http.Request) {
	senderID := r.Header.Get(senderIDHeader)
	if senderID == "" {
		http.Error(w, "missing "+senderIDHeader, http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) < 1 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	}

	req := decodeHTTPPacket(body)

	s.mu.Lock()
	s.sessions[senderID] = true
	s.mu.Unlock()

	resp := s.handler(senderID, req)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(encodeHTTPPacket(resp))
}

func (s *HTTPServer) serveROM(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(s.rom)
}

// decodeHTTPPacket and encodeHTTPPacket carry a packet over an
// already-complete HTTP body as its type byte followed directly by the
// payload: unlike ReadPacket/WritePacket there is no size field and no
// one-byte short form, since HTTP supplies its own framing
// (§4.1.3: "no framing is needed").
func decodeHTTPPacket(body []byte) Packet {
	return Packet{Type: body[0] &^ sizedFlag, Payload: body[1:]}
}

func encodeHTTPPacket(p Packet) []byte {
	out := make([]byte, 1+len(p.Payload))
	out[0] = p.Type
	copy(out[1:], p.Payload)
	return out
}
