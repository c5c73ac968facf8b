// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package realtime

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

// subscriptionRequest is the client->server control message:
// subscribe/unsubscribe by account id.
type subscriptionRequest struct {
	Action    string `json:"action"`
	AccountID string `json:"accountId"`
}

// Serve upgrades an already-established *websocket.Conn (the caller
// wires the fiber route and the websocket.New middleware; see
// internal/httpapi) into a registered connection on hub, and blocks
// until the connection closes. tenantID is the tenant the connection
// authenticated as at the handshake; the hub will only ever fan that
// tenant's events to it. It is meant to run as the fiber websocket
// handler body.
func (h *Hub) Serve(conn *websocket.Conn, tenantID string, logger mlog.Logger) {
	c := newClient(tenantID)

	h.register(c)

	done := make(chan struct{})

	go h.writePump(conn, c, done)
	h.readPump(conn, c, logger)

	h.unregister(c)
	<-done
}

// readPump reads subscribe/unsubscribe control messages until the
// connection errors or closes. Reconnection and missed-event recovery
// are the client's responsibility: the stream is not a durable
// per-client queue, so a reconnecting client re-derives state from a
// follow-up balance read.
func (h *Hub) readPump(conn *websocket.Conn, c *client, logger mlog.Logger) {
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debugf("realtime: websocket read error: %v", err)
			}

			return
		}

		var sub subscriptionRequest
		if err := json.Unmarshal(message, &sub); err != nil {
			continue
		}

		switch sub.Action {
		case "subscribe":
			c.subscribe(sub.AccountID)
		case "unsubscribe":
			c.unsubscribe(sub.AccountID)
		}
	}
}

// writePump drains c.send onto the connection and keeps it alive with
// periodic pings.
func (h *Hub) writePump(conn *websocket.Conn, c *client, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
