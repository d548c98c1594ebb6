package versevec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Session is a sequence of searches served over one WebSocket connection.
// The server pins a dedicated store connection to it, so a session skips the
// per-call checkout cost of Client.Search. Safe for concurrent use; searches
// are serialized because the protocol answers strictly in order.
type Session struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// OpenSession starts a search session against the server.
func (c *Client) OpenSession(ctx context.Context) (*Session, error) {
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/semantic-search/session"

	header := http.Header{}
	c.authorize(header)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("versevec: open session: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("versevec: open session: %w", err)
	}

	return &Session{ws: ws}, nil
}

// Search runs one search on the session. Replies arrive in request order.
func (s *Session) Search(ctx context.Context, query string, opts *SearchOptions) ([]Verse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.ws.SetWriteDeadline(deadline)
		_ = s.ws.SetReadDeadline(deadline)
	}

	if err := s.ws.WriteJSON(searchBody(query, opts)); err != nil {
		return nil, fmt.Errorf("versevec: session write: %w", err)
	}

	_, data, err := s.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("versevec: session read: %w", err)
	}

	return decodeSessionReply(data)
}

// Close ends the session, returning its server-side store connection to the
// pool.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err := s.ws.Close(); err != nil {
		return fmt.Errorf("versevec: close session: %w", err)
	}
	return nil
}

// decodeSessionReply discriminates the two reply shapes: a JSON array of
// verses on success, an error object otherwise.
func decodeSessionReply(data []byte) ([]Verse, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var verses []Verse
		if err := json.Unmarshal(data, &verses); err != nil {
			return nil, fmt.Errorf("versevec: decode session reply: %w", err)
		}
		return verses, nil
	}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Code == "" {
		return nil, fmt.Errorf("versevec: unexpected session reply: %s", trimmed)
	}
	return nil, &APIError{Code: payload.Code, Message: payload.Message}
}
