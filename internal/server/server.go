package server

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"chatterbox/internal/config"
	"chatterbox/internal/stats"
	"chatterbox/internal/types"
)

// DefaultRooms are seeded at startup and are never removed by the
// lifecycle sweep, no matter how long they sit empty.
var DefaultRooms = []string{"general", "gaming", "movies", "music"}

const defaultRoom = "general"

// Metric names registered with the stats provider.
const (
	ActiveConnections = "ActiveConnections"
	ActiveRooms       = "ActiveRooms"
	MessagesSent      = "MessagesSent"
	MessagesDeleted   = "MessagesDeleted"
	ReactionsApplied  = "ReactionsApplied"
	RoomsCreated      = "RoomsCreated"
	RoomsRemoved      = "RoomsRemoved"
)

type joinServerRequest struct {
	client *Client
	join   *JoinPayload
}

type changeRoomRequest struct {
	client *Client
	room   string
}

type historyQuery struct {
	room    string
	replyTo string
	resp    chan historyResult
}

type historyResult struct {
	ok      bool
	history []*types.Message
	reply   *types.Message
}

// ChatServer owns the room directory. Its run loop serializes every
// directory mutation: connects, disconnects, joins, room changes, room
// creation and the idle-room sweep. Because the sweep and all join
// routing happen on the same goroutine, a room that just accepted a
// join can never be picked up by the same sweep pass.
type ChatServer struct {
	log        *log.Logger
	stats      stats.StatsProvider
	presence   *PresenceRegistry
	dispatcher *Dispatcher

	rooms         map[string]*Room
	roomIdleAge   time.Duration
	sweepInterval time.Duration

	joinChan       chan *joinServerRequest
	changeRoomChan chan *changeRoomRequest
	createRoomChan chan string
	roomListChan   chan *Client
	roomNamesChan  chan chan []string
	historyChan    chan *historyQuery
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, sp stats.StatsProvider, cfg *config.Config) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		stats:          sp,
		presence:       NewPresenceRegistry(),
		dispatcher:     NewDispatcher(logger),
		rooms:          make(map[string]*Room),
		roomIdleAge:    cfg.RoomIdleAge,
		sweepInterval:  cfg.SweepInterval,
		joinChan:       make(chan *joinServerRequest, 64),
		changeRoomChan: make(chan *changeRoomRequest, 64),
		createRoomChan: make(chan string, 64),
		roomListChan:   make(chan *Client, 64),
		roomNamesChan:  make(chan chan []string),
		historyChan:    make(chan *historyQuery),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, name := range []string{ActiveConnections, ActiveRooms, MessagesSent,
		MessagesDeleted, ReactionsApplied, RoomsCreated, RoomsRemoved} {
		cs.stats.RegisterMetric(name)
	}

	for _, name := range DefaultRooms {
		r := newRoom(cs, name, true)
		cs.rooms[name] = r
		cs.stats.Incr(ActiveRooms)
		go r.start()
	}

	return cs, nil
}

func (cs *ChatServer) Run() {
	sweep := time.NewTicker(cs.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case c := <-cs.RegisterChan:
			cs.log.Printf("adding connection %q", c.id)
			cs.dispatcher.Add(c)
			cs.stats.Incr(ActiveConnections)
			c.queueMessage(NewServerEvent(EventRoomList, cs.roomNames()))
		case c := <-cs.deRegisterChan:
			cs.log.Printf("removing connection %q", c.id)
			cs.handleDisconnect(c)
		case req := <-cs.joinChan:
			cs.handleJoin(req)
		case req := <-cs.changeRoomChan:
			cs.handleChangeRoom(req)
		case name := <-cs.createRoomChan:
			cs.handleCreateRoom(name)
		case c := <-cs.roomListChan:
			c.queueMessage(NewServerEvent(EventRoomList, cs.roomNames()))
		case ch := <-cs.roomNamesChan:
			ch <- cs.roomNames()
		case q := <-cs.historyChan:
			cs.handleHistoryQuery(q)
		case <-sweep.C:
			cs.sweepIdleRooms()
		case <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, r := range cs.rooms {
				done := make(chan struct{})
				r.exit <- exitReq{done: done}
				<-done
			}
			cs.dispatcher.StopAll()
			close(cs.done)
			return
		}
	}
}

// handleJoin registers presence and puts the connection in its room:
// the default room on first join, or wherever it already was when a
// client re-sends join.
func (cs *ChatServer) handleJoin(req *joinServerRequest) {
	c := req.client
	p := cs.presence.Register(c.id, req.join.Username, req.join.AvatarIndex, defaultRoom)

	r, ok := cs.rooms[p.Room]
	if !ok {
		// the room expired while the user was offline
		cs.presence.SetRoom(c.id, defaultRoom)
		r = cs.rooms[defaultRoom]
	}

	done := make(chan struct{})
	r.joinChan <- &joinRoomRequest{client: c, done: done}
	<-done

	c.queueMessage(NewServerEvent(EventRoomList, cs.roomNames()))
}

// handleChangeRoom moves a connection between rooms: the old room's
// leave completes before the new room's join starts, so the connection
// is never in zero or two member sets from an observer's point of
// view.
func (cs *ChatServer) handleChangeRoom(req *changeRoomRequest) {
	c := req.client
	p, ok := cs.presence.Get(c.id)
	if !ok {
		return
	}

	target, ok := cs.rooms[req.room]
	if !ok {
		return
	}

	if old, ok := cs.rooms[p.Room]; ok {
		done := make(chan struct{})
		old.leaveChan <- &leaveRoomRequest{client: c, done: done}
		<-done
	}

	done := make(chan struct{})
	target.joinChan <- &joinRoomRequest{client: c, prompt: true, done: done}
	<-done
}

func (cs *ChatServer) handleCreateRoom(name string) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return
	}
	if _, exists := cs.rooms[normalized]; exists {
		return
	}

	r := newRoom(cs, normalized, false)
	cs.rooms[normalized] = r
	go r.start()

	cs.dispatcher.Broadcast(NewServerEvent(EventRoomCreated, normalized), nil)
	cs.stats.Incr(RoomsCreated)
	cs.stats.Incr(ActiveRooms)
	cs.log.Printf("created room %q", normalized)
}

func (cs *ChatServer) handleDisconnect(c *Client) {
	cs.dispatcher.Remove(c)
	cs.stats.Decr(ActiveConnections)

	p, ok := cs.presence.Get(c.id)
	if !ok {
		return
	}

	if r, ok := cs.rooms[p.Room]; ok {
		done := make(chan struct{})
		r.leaveChan <- &leaveRoomRequest{client: c, done: done}
		<-done
	}

	cs.presence.Remove(c.id)
}

func (cs *ChatServer) handleHistoryQuery(q *historyQuery) {
	r, ok := cs.rooms[q.room]
	if !ok {
		q.resp <- historyResult{}
		return
	}

	rq := &roomQuery{replyTo: q.replyTo, resp: make(chan roomQueryResult, 1)}
	r.queryChan <- rq
	res := <-rq.resp

	q.resp <- historyResult{ok: true, history: res.history, reply: res.reply}
}

// sweepIdleRooms removes dynamic rooms that are both empty and idle
// past the threshold. Each room answers a probe on its own channel, so
// any join already routed to the room is counted before its emptiness
// is judged.
func (cs *ChatServer) sweepIdleRooms() {
	now := time.Now()
	for name, r := range cs.rooms {
		if r.isDefault {
			continue
		}

		ch := make(chan roomStatus, 1)
		r.probeChan <- ch
		st := <-ch

		if st.members == 0 && now.Sub(st.lastActivity) > cs.roomIdleAge {
			cs.removeRoom(name, r)
		}
	}
}

func (cs *ChatServer) removeRoom(name string, r *Room) {
	delete(cs.rooms, name)

	done := make(chan struct{})
	r.exit <- exitReq{done: done}
	<-done

	cs.dispatcher.Broadcast(NewServerEvent(EventRoomRemoved, name), nil)
	cs.stats.Incr(RoomsRemoved)
	cs.stats.Decr(ActiveRooms)
	cs.log.Printf("removed room %q due to inactivity", name)
}

func (cs *ChatServer) roomNames() []string {
	names := lo.Keys(cs.rooms)
	sort.Strings(names)
	return names
}

// RegisterClient hands a freshly upgraded connection to the run loop.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

// RoomNames returns the current room directory listing.
func (cs *ChatServer) RoomNames() []string {
	ch := make(chan []string, 1)
	cs.roomNamesChan <- ch
	return <-ch
}

// History returns a snapshot of a room's ordered log.
func (cs *ChatServer) History(room string) ([]*types.Message, bool) {
	q := &historyQuery{room: room, resp: make(chan historyResult, 1)}
	cs.historyChan <- q
	res := <-q.resp
	return res.history, res.ok
}

// ResolveReply follows a replyTo reference in a room, returning a
// tombstone placeholder when the referent is gone.
func (cs *ChatServer) ResolveReply(room, replyTo string) (*types.Message, bool) {
	q := &historyQuery{room: room, replyTo: replyTo, resp: make(chan historyResult, 1)}
	cs.historyChan <- q
	res := <-q.resp
	return res.reply, res.ok
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
