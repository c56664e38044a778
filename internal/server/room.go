package server

import (
	"log"
	"time"

	"github.com/samber/lo"

	"chatterbox/internal/types"
)

type joinRoomRequest struct {
	client *Client
	// prompt asks the joining client to mark the newest message read
	// when it was authored by someone else (room-change behavior).
	prompt bool
	done   chan struct{}
}

type leaveRoomRequest struct {
	client *Client
	done   chan struct{}
}

// roomRequest carries a single client action into the room goroutine.
// Exactly one of the pointer fields is set.
type roomRequest struct {
	client   *Client
	send     *SendMessagePayload
	edit     *EditMessagePayload
	remove   *string
	reaction *UpdateReactionPayload
	read     *string
	typing   *bool
	// roster re-broadcasts update-users after a presence mutation
	// (status or avatar change).
	roster bool
}

type roomQuery struct {
	replyTo string
	resp    chan roomQueryResult
}

type roomQueryResult struct {
	history []*types.Message
	reply   *types.Message
}

type roomStatus struct {
	members      int
	lastActivity time.Time
}

type exitReq struct {
	done chan struct{}
}

// Room owns all per-room state: member set, message log, reactions and
// read receipts. Every mutation goes through the room goroutine, which
// is the serialization domain required for read-modify-write sequences
// on the log and the reaction maps.
type Room struct {
	name         string
	isDefault    bool
	cs           *ChatServer
	log          *log.Logger
	members      map[string]*Client
	messages     *messageLog
	receipts     *receiptTracker
	lastActivity time.Time

	joinChan  chan *joinRoomRequest
	leaveChan chan *leaveRoomRequest
	reqChan   chan *roomRequest
	queryChan chan *roomQuery
	probeChan chan chan roomStatus
	exit      chan exitReq
}

func newRoom(cs *ChatServer, name string, isDefault bool) *Room {
	r := &Room{
		name:         name,
		isDefault:    isDefault,
		cs:           cs,
		log:          cs.log,
		members:      make(map[string]*Client),
		messages:     newMessageLog(name),
		receipts:     newReceiptTracker(),
		lastActivity: time.Now(),
		joinChan:     make(chan *joinRoomRequest, 16),
		leaveChan:    make(chan *leaveRoomRequest, 16),
		reqChan:      make(chan *roomRequest, 256),
		queryChan:    make(chan *roomQuery),
		probeChan:    make(chan chan roomStatus),
		exit:         make(chan exitReq),
	}

	notice := r.messages.SystemNotice("Room " + name + " created")
	r.receipts.Track(notice.Id)
	return r
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.name)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leave := <-r.leaveChan:
			r.handleLeave(leave)
		case req := <-r.reqChan:
			r.handleRequest(req)
		case q := <-r.queryChan:
			r.handleQuery(q)
		case ch := <-r.probeChan:
			ch <- roomStatus{members: len(r.members), lastActivity: r.lastActivity}
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleJoin(join *joinRoomRequest) {
	defer signal(join.done)

	c := join.client
	p, ok := r.cs.presence.Get(c.id)
	if !ok {
		// connection disappeared before the join was routed
		return
	}

	r.members[c.id] = c
	c.setRoom(r)
	r.cs.presence.SetRoom(c.id, r.name)
	r.touch()

	c.queueMessage(NewServerEvent(EventRoomHistory, r.messages.History()))

	r.broadcast(NewServerEvent(EventUserJoined, p.Username), nil)
	r.broadcast(NewServerEvent(EventUpdateUsers, r.roster()), nil)

	if join.prompt {
		if last := r.messages.Last(); last != nil && last.Username != p.Username {
			c.queueMessage(NewServerEvent(EventMarkAsRead, last.Id))
		}
	}
}

func (r *Room) handleLeave(leave *leaveRoomRequest) {
	defer signal(leave.done)

	c := leave.client
	if _, ok := r.members[c.id]; !ok {
		return
	}

	p, known := r.cs.presence.Get(c.id)

	delete(r.members, c.id)
	c.clearRoom(r)
	r.touch()

	if known {
		r.broadcast(NewServerEvent(EventUserLeft, p.Username), nil)
	}
	r.broadcast(NewServerEvent(EventUpdateUsers, r.roster()), nil)
}

func (r *Room) handleRequest(req *roomRequest) {
	p, ok := r.cs.presence.Get(req.client.id)
	if !ok {
		return
	}

	switch {
	case req.send != nil:
		msg := r.messages.Append(p, req.send)
		r.receipts.Track(msg.Id)
		r.touch()
		// the write pumps marshal events asynchronously, so they only
		// ever see clones, never the live message
		r.broadcast(NewServerEvent(EventReceiveMessage, msg.Clone()), nil)
		r.cs.stats.Incr(MessagesSent)
	case req.edit != nil:
		if r.messages.Edit(req.edit.MessageId, p.Username, req.edit.NewMessage) {
			r.broadcast(NewServerEvent(EventMessageEdited, MessageEdited{
				MessageId:  req.edit.MessageId,
				NewMessage: req.edit.NewMessage,
			}), nil)
		}
	case req.remove != nil:
		if r.messages.Delete(*req.remove, p.Username) {
			r.receipts.Forget(*req.remove)
			r.broadcast(NewServerEvent(EventMessageDeleted, MessageDeleted{MessageId: *req.remove}), nil)
			r.cs.stats.Incr(MessagesDeleted)
		}
	case req.reaction != nil:
		msg := r.messages.Get(req.reaction.MessageId)
		if msg == nil {
			return
		}
		if applyReaction(msg, p.Username, req.reaction.Emoji, req.reaction.Action) {
			r.broadcast(NewServerEvent(EventReactionUpdated, ReactionUpdated{
				MessageId: msg.Id,
				Reactions: types.CloneReactions(msg.Reactions),
			}), nil)
			r.cs.stats.Incr(ReactionsApplied)
		}
	case req.read != nil:
		if r.messages.Get(*req.read) == nil {
			return
		}
		if r.receipts.MarkRead(*req.read, p.Username) {
			r.broadcast(NewServerEvent(EventMessageRead, MessageRead{
				MessageId: *req.read,
				Username:  p.Username,
			}), nil)
		}
	case req.typing != nil:
		r.broadcast(NewServerEvent(EventTyping, TypingBroadcast{
			Username: p.Username,
			IsTyping: *req.typing,
		}), req.client)
	case req.roster:
		r.broadcast(NewServerEvent(EventUpdateUsers, r.roster()), nil)
	}
}

func (r *Room) handleQuery(q *roomQuery) {
	if q.replyTo != "" {
		q.resp <- roomQueryResult{reply: r.messages.ResolveReply(q.replyTo)}
		return
	}
	q.resp <- roomQueryResult{history: r.messages.History()}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.name)

	for _, c := range r.members {
		c.clearRoom(r)
	}
	r.members = make(map[string]*Client)

	signal(e.done)
}

// enqueue hands a client action to the room goroutine without
// blocking; a full room drops the action.
func (r *Room) enqueue(req *roomRequest) bool {
	select {
	case r.reqChan <- req:
		return true
	default:
		r.log.Printf("request channel full on room %q, dropping", r.name)
		return false
	}
}

func (r *Room) roster() []types.User {
	return r.cs.presence.Roster(lo.Keys(r.members))
}

func (r *Room) broadcast(ev *ServerEvent, skip *Client) {
	for _, c := range r.members {
		if c == skip {
			continue
		}
		c.queueMessage(ev)
	}
}

func (r *Room) touch() {
	r.lastActivity = time.Now()
}

func signal(done chan struct{}) {
	if done != nil {
		close(done)
	}
}
