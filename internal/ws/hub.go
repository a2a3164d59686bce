// Package ws exposes the agent to local UI callers over a WebSocket
// bridge. It is convenience only: every command maps onto the same calls
// a sibling instance would make through the shared channel.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"dicebridge/internal/agent"
	"dicebridge/internal/protocol"
)

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *clientConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Command is one request from a connected UI client.
type Command struct {
	Op        string                `json:"op"`
	CmdID     string                `json:"cmd_id,omitempty"`
	Subject   string                `json:"subject,omitempty"`
	Dice      []protocol.DieRequest `json:"dice,omitempty"`
	Bonus     int                   `json:"bonus,omitempty"`
	Advantage string                `json:"advantage,omitempty"`
	Hidden    bool                  `json:"hidden,omitempty"`
	NoWait    bool                  `json:"no_wait,omitempty"`
}

// Reply is the bridge's answer to a command, or a pushed completion event.
type Reply struct {
	Op        string         `json:"op"`
	CmdID     string         `json:"cmd_id,omitempty"`
	RollID    string         `json:"roll_id,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Available bool           `json:"available,omitempty"`
	Version   string         `json:"version,omitempty"`
	Results   map[string]int `json:"results,omitempty"`
	Total     int            `json:"total,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type Hub struct {
	agent     *agent.Agent
	authToken string

	upgrader websocket.Upgrader

	clientMu sync.RWMutex
	clients  map[*clientConn]struct{}
}

func NewHub(a *agent.Agent, authToken string) *Hub {
	h := &Hub{
		agent:     a,
		authToken: authToken,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients: make(map[*clientConn]struct{}),
	}
	// Push every locally observed completion to connected clients, so
	// fire-and-forget rolls are still visible in the UI.
	a.OnComplete(func(c agent.Completion) {
		h.broadcast(Reply{
			Op:      "roll_complete",
			RollID:  c.RollID,
			Subject: c.Subject,
			Results: c.Results,
			Total:   c.Total,
		})
	})
	return h
}

func (h *Hub) HandleClient(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" && r.Header.Get("Authorization") != "Bearer "+h.authToken {
		log.Printf("client unauthorized: remote=%s", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade client ws failed: %v", err)
		return
	}
	client := &clientConn{conn: conn}

	h.clientMu.Lock()
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.clientMu.Unlock()

	log.Printf("client connected: remote=%s active_clients=%d", r.RemoteAddr, clientCount)
	h.readClient(client)
}

func (h *Hub) readClient(client *clientConn) {
	defer func() {
		h.clientMu.Lock()
		delete(h.clients, client)
		clientCount := len(h.clients)
		h.clientMu.Unlock()
		_ = client.conn.Close()
		log.Printf("client disconnected: active_clients=%d", clientCount)
	}()

	for {
		var cmd Command
		if err := client.conn.ReadJSON(&cmd); err != nil {
			log.Printf("recv client command failed: %v", err)
			return
		}
		switch cmd.Op {
		case "is_available":
			h.handleIsAvailable(client, cmd)
		case "trigger_roll":
			// Rolls can take a while; never block the read loop on one.
			go h.handleTriggerRoll(client, cmd)
		default:
			log.Printf("ignore unknown client op: op=%s", cmd.Op)
		}
	}
}

func (h *Hub) handleIsAvailable(client *clientConn, cmd Command) {
	ok, err := h.agent.IsAvailable(context.Background())
	reply := Reply{Op: "availability", CmdID: cmd.CmdID, Available: ok}
	if err != nil {
		reply.Error = err.Error()
	}
	h.send(client, reply)
}

func (h *Hub) handleTriggerRoll(client *clientConn, cmd Command) {
	req := agent.TriggerRequest{
		Subject:   cmd.Subject,
		Dice:      cmd.Dice,
		Bonus:     cmd.Bonus,
		Advantage: cmd.Advantage,
		Hidden:    cmd.Hidden,
	}
	if cmd.NoWait {
		rollID, err := h.agent.TriggerRollNoWait(context.Background(), req)
		reply := Reply{Op: "roll_ack", CmdID: cmd.CmdID, RollID: rollID}
		if err != nil {
			reply.Error = err.Error()
		}
		h.send(client, reply)
		return
	}

	res, err := h.agent.TriggerRoll(context.Background(), req)
	if err != nil {
		h.send(client, Reply{Op: "roll_error", CmdID: cmd.CmdID, Error: err.Error()})
		return
	}
	h.send(client, Reply{
		Op:      "roll_result",
		CmdID:   cmd.CmdID,
		RollID:  res.RollID,
		Subject: res.Subject,
		Results: res.Results,
		Total:   res.Total,
	})
}

func (h *Hub) send(client *clientConn, reply Reply) {
	if err := client.WriteJSON(reply); err != nil {
		log.Printf("send to client failed: op=%s err=%v", reply.Op, err)
	}
}

func (h *Hub) broadcast(reply Reply) {
	h.clientMu.RLock()
	defer h.clientMu.RUnlock()
	for client := range h.clients {
		if err := client.WriteJSON(reply); err != nil {
			log.Printf("broadcast to client failed: %v", err)
		}
	}
}
