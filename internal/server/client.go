package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"chatterbox/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var validate = validator.New()

// Client is one websocket connection. Its id doubles as the presence
// key. The read pump parses and validates frames, then routes them to
// the chat server (directory operations) or to the connection's
// current room (everything else). Malformed frames are dropped without
// a reply; this protocol has no error channel.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	send       chan *ServerEvent
	room       *Room
	roomLock   sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(id string, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		log:        l,
		send:       make(chan *ServerEvent, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing frame:", err)
			continue
		}

		c.dispatch(&ev)
	}
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) dispatch(ev *ClientEvent) {
	switch ev.Event {
	case EventJoin:
		var p JoinPayload
		if !c.decode(ev.Data, &p) {
			return
		}
		select {
		case c.chatServer.joinChan <- &joinServerRequest{client: c, join: &p}:
		default:
			c.log.Println("join channel full, dropping join")
		}
	case EventGetRooms:
		select {
		case c.chatServer.roomListChan <- c:
		default:
		}
	case EventCreateRoom:
		var name string
		if json.Unmarshal(ev.Data, &name) != nil {
			return
		}
		select {
		case c.chatServer.createRoomChan <- name:
		default:
			c.log.Println("create-room channel full, dropping")
		}
	case EventChangeRoom:
		var name string
		if json.Unmarshal(ev.Data, &name) != nil {
			return
		}
		select {
		case c.chatServer.changeRoomChan <- &changeRoomRequest{client: c, room: name}:
		default:
			c.log.Println("change-room channel full, dropping")
		}
	case EventSendMessage:
		p, ok := c.parseSend(ev.Data)
		if !ok {
			return
		}
		c.toRoom(&roomRequest{client: c, send: p})
	case EventEditMessage:
		var p EditMessagePayload
		if !c.decode(ev.Data, &p) {
			return
		}
		c.toRoom(&roomRequest{client: c, edit: &p})
	case EventDeleteMessage:
		var id string
		if json.Unmarshal(ev.Data, &id) != nil || id == "" {
			return
		}
		c.toRoom(&roomRequest{client: c, remove: &id})
	case EventUpdateReaction:
		var p UpdateReactionPayload
		if !c.decode(ev.Data, &p) {
			return
		}
		c.toRoom(&roomRequest{client: c, reaction: &p})
	case EventMarkAsRead:
		var id string
		if json.Unmarshal(ev.Data, &id) != nil || id == "" {
			return
		}
		c.toRoom(&roomRequest{client: c, read: &id})
	case EventTyping:
		var isTyping bool
		if json.Unmarshal(ev.Data, &isTyping) != nil {
			return
		}
		c.toRoom(&roomRequest{client: c, typing: &isTyping})
	case EventUserStatus:
		var status string
		if json.Unmarshal(ev.Data, &status) != nil {
			return
		}
		s := types.Status(status)
		if s != types.StatusOnline && s != types.StatusIdle {
			return
		}
		if c.chatServer.presence.SetStatus(c.id, s) {
			c.toRoom(&roomRequest{client: c, roster: true})
		}
	case EventAvatarChange:
		var idx int
		if json.Unmarshal(ev.Data, &idx) != nil || idx < 0 {
			return
		}
		if c.chatServer.presence.SetAvatar(c.id, idx) {
			c.toRoom(&roomRequest{client: c, roster: true})
			c.chatServer.dispatcher.Broadcast(NewServerEvent(EventAvatarUpdated, AvatarUpdated{
				UserId:      c.id,
				AvatarIndex: idx,
			}), c)
		}
	default:
		c.log.Printf("unknown event %q", ev.Event)
	}
}

// parseSend accepts both the bare-string and the object forms of
// send-message and normalizes them into the tagged payload.
func (c *Client) parseSend(data json.RawMessage) (*SendMessagePayload, bool) {
	var p SendMessagePayload
	if len(data) > 0 && data[0] == '"' {
		var text string
		if json.Unmarshal(data, &text) != nil {
			return nil, false
		}
		p.Message = text
	} else if json.Unmarshal(data, &p) != nil {
		return nil, false
	}

	if err := validate.Struct(&p); err != nil {
		c.log.Println("invalid send-message payload:", err)
		return nil, false
	}
	return &p, true
}

func (c *Client) decode(data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		c.log.Println("error parsing payload:", err)
		return false
	}
	if err := validate.Struct(v); err != nil {
		c.log.Println("invalid payload:", err)
		return false
	}
	return true
}

// toRoom routes a request to the connection's current room, resolved
// live so operations always act on the room the user is in now.
func (c *Client) toRoom(req *roomRequest) {
	r := c.currentRoom()
	if r == nil {
		return
	}
	r.enqueue(req)
}

func (c *Client) queueMessage(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Println("send buffer full, dropping event for", c.id)
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	select {
	case c.chatServer.deRegisterChan <- c:
	case <-c.chatServer.done:
	}
	c.stopClient()
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

// clearRoom detaches the client, but only from the room it is actually
// in; a stale leave must not clobber a newer join.
func (c *Client) clearRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	if c.room == r {
		c.room = nil
	}
}

func (c *Client) currentRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()
	return c.room
}
