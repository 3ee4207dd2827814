package wsview

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// wsClient is one connected browser ticker view. writePump owns the
// connection's writes (pings and broadcast messages); readPump owns the
// reads (pong liveness only — clients never send us anything meaningful).
// Splitting reads and writes across two goroutines follows gorilla's own
// documented pattern: a *websocket.Conn supports at most one concurrent
// reader and one concurrent writer.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// writePump drains send onto the connection and pings on pingPeriod to
// keep the connection alive through idle proxies. It returns, closing the
// connection, when send is closed (by Hub.unregister) or a write fails.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logf("wsview: write: " + err.Error())
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logf("wsview: ping: " + err.Error())
				return
			}
		}
	}
}

// readPump only exists to observe pongs and disconnects: the client never
// sends this hub anything it acts on. It unregisters c and closes the
// connection once the peer goes away or the pong deadline lapses.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
