package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tilescape.dev/internal/protocol"
	"tilescape.dev/internal/sched"
)

// Client is a sched.Source backed by a tile server connection. Fetches may
// run concurrently on scheduler workers; replies are matched to callers by
// request id.
type Client struct {
	conn  *websocket.Conn
	scene protocol.SceneParams
	log   *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	waiting map[string]chan protocol.TileContentMsg
	closed  bool
}

func Dial(ctx context.Context, url, viewerName string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		log:     logger,
		waiting: make(map[string]chan protocol.TileContentMsg),
	}
	if err := c.handshake(viewerName); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) handshake(viewerName string) error {
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ViewerName:      viewerName,
	}
	if err := c.write(hello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("await welcome: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		return fmt.Errorf("bad welcome message")
	}
	if welcome.ProtocolVersion != protocol.Version {
		return fmt.Errorf("protocol mismatch: server %s, viewer %s", welcome.ProtocolVersion, protocol.Version)
	}
	c.scene = welcome.Scene
	c.log.Printf("ws: session %s established", welcome.SessionID)
	return nil
}

// Scene returns the parameters announced by the server's WELCOME.
func (c *Client) Scene() protocol.SceneParams { return c.scene }

func (c *Client) readLoop() {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.failAll()
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeTileContent {
			continue
		}
		var tc protocol.TileContentMsg
		if err := json.Unmarshal(msg, &tc); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.waiting[tc.RequestID]
		if ok {
			delete(c.waiting, tc.RequestID)
		}
		c.mu.Unlock()
		if ok {
			ch <- tc
		}
	}
}

// Fetch implements sched.Source over the connection.
func (c *Client) Fetch(ctx context.Context, contentID string) ([]byte, error) {
	requestID := uuid.NewString()
	ch := make(chan protocol.TileContentMsg, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("ws: client closed")
	}
	c.waiting[requestID] = ch
	c.mu.Unlock()

	req := protocol.TileRequestMsg{
		Type:            protocol.TypeTileRequest,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		ContentID:       contentID,
	}
	if err := c.write(req); err != nil {
		c.drop(requestID)
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case tc, ok := <-ch:
		if !ok {
			// Connection lost; a transport error leaves the tile retryable.
			return nil, fmt.Errorf("ws: connection lost")
		}
		if !tc.Found {
			return nil, sched.ErrNotFound
		}
		return tc.Payload, nil
	case <-ctx.Done():
		c.drop(requestID)
		// Best effort: tell the server to stop working on it.
		_ = c.write(protocol.TileCancelMsg{Type: protocol.TypeTileCancel, RequestID: requestID})
		return nil, ctx.Err()
	}
}

func (c *Client) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) drop(requestID string) {
	c.mu.Lock()
	delete(c.waiting, requestID)
	c.mu.Unlock()
}

func (c *Client) failAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.waiting {
		close(ch)
		delete(c.waiting, id)
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
