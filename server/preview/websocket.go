package preview

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// A websocket viewer. Messages are dropped if the viewer can't keep up.
type wsClient struct {
	conn      *websocket.Conn
	send      chan any
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (s *Server) addClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{
		conn: conn,
		send: make(chan any, 16),
	}
	s.clientsLock.Lock()
	s.clients[c] = true
	s.clientsLock.Unlock()
	return c
}

func (s *Server) removeClient(c *wsClient) {
	s.clientsLock.Lock()
	delete(s.clients, c)
	s.clientsLock.Unlock()
	c.close()
}

func (s *Server) broadcast(msg any) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.Log.Warnf("Websocket client %v is too slow, dropping message", c.conn.RemoteAddr())
		}
	}
}

// Run the websocket until either side closes it
func (s *Server) serveClient(c *wsClient) {
	defer c.conn.Close()
	defer s.removeClient(c)

	// We don't expect anything from the viewer, but we need to read in order to notice a close
	readerDone := make(chan bool)
	go func() {
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				close(readerDone)
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.Log.Infof("Websocket write to %v failed: %v", c.conn.RemoteAddr(), err)
				return
			}
		case <-readerDone:
			return
		}
	}
}
