// Package ws carries the tile protocol over websockets.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tilescape.dev/internal/protocol"
)

// Provider resolves content ids to encoded payloads. A nil byte slice with
// a nil error is not allowed; absence is reported via ErrNoContent-style
// errors mapped by the caller.
type Provider interface {
	Payload(contentID string) ([]byte, bool, error)
}

type Server struct {
	provider Provider
	scene    protocol.SceneParams
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(provider Provider, scene protocol.SceneParams, logger *log.Logger) *Server {
	return &Server{
		provider: provider,
		scene:    scene,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: the only place that touches conn writes after
		// the handshake.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		var (
			mu       sync.Mutex
			inFlight = map[string]context.CancelFunc{}
		)

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeTileRequest:
				var req protocol.TileRequestMsg
				if err := json.Unmarshal(msg, &req); err != nil {
					continue
				}
				if req.ProtocolVersion != protocol.Version || req.RequestID == "" {
					continue
				}
				reqCtx, reqCancel := context.WithCancel(ctx)
				mu.Lock()
				inFlight[req.RequestID] = reqCancel
				mu.Unlock()
				go func() {
					defer func() {
						reqCancel()
						mu.Lock()
						delete(inFlight, req.RequestID)
						mu.Unlock()
					}()
					s.serveTile(reqCtx, req, out)
				}()
			case protocol.TypeTileCancel:
				var cancelMsg protocol.TileCancelMsg
				if err := json.Unmarshal(msg, &cancelMsg); err != nil {
					continue
				}
				mu.Lock()
				if c, ok := inFlight[cancelMsg.RequestID]; ok {
					c()
				}
				mu.Unlock()
			}
		}
	}
}

// handshake expects HELLO and answers WELCOME with the scene parameters.
func (s *Server) handshake(conn *websocket.Conn) (string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.log.Printf("ws: rejecting viewer %q: protocol %s != %s", hello.ViewerName, hello.ProtocolVersion, protocol.Version)
		return "", nil
	}

	sessionID := uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Scene:           s.scene,
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return "", nil
	}
	s.log.Printf("ws: session %s viewer=%q", sessionID, hello.ViewerName)
	return sessionID, make(chan []byte, 256)
}

func (s *Server) serveTile(ctx context.Context, req protocol.TileRequestMsg, out chan []byte) {
	resp := protocol.TileContentMsg{
		Type:      protocol.TypeTileContent,
		RequestID: req.RequestID,
		ContentID: req.ContentID,
	}
	payload, found, err := s.provider.Payload(req.ContentID)
	if err != nil {
		s.log.Printf("ws: payload %s: %v", req.ContentID, err)
	} else if found {
		resp.Found = true
		resp.Payload = payload
	}
	if ctx.Err() != nil {
		return // canceled; the viewer no longer wants it
	}
	b, _ := json.Marshal(resp)
	select {
	case out <- b:
	case <-ctx.Done():
	}
}
