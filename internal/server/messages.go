package server

import (
	"encoding/json"
	"time"

	"chatterbox/internal/types"
)

// Wire event names. Client frames arrive as {"event": ..., "data": ...}
// and server frames are emitted in the same envelope.
const (
	EventJoin            = "join"
	EventGetRooms        = "get-rooms"
	EventRoomList        = "room-list"
	EventRoomHistory     = "room-history"
	EventSendMessage     = "send-message"
	EventReceiveMessage  = "receive-message"
	EventChangeRoom      = "change-room"
	EventCreateRoom      = "create-room"
	EventRoomCreated     = "room-created"
	EventRoomRemoved     = "room-removed"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventUpdateUsers     = "update-users"
	EventTyping          = "typing"
	EventUpdateReaction  = "update-reaction"
	EventReactionUpdated = "reaction-updated"
	EventEditMessage     = "edit-message"
	EventMessageEdited   = "message-edited"
	EventDeleteMessage   = "delete-message"
	EventMessageDeleted  = "message-deleted"
	EventMarkAsRead      = "mark-as-read"
	EventMessageRead     = "message-read"
	EventUserStatus      = "user-status"
	EventAvatarChange    = "avatar-change"
	EventAvatarUpdated   = "avatar-updated"
)

type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func NewServerEvent(event string, data any) *ServerEvent {
	return &ServerEvent{Event: event, Data: data}
}

type JoinPayload struct {
	Username    string `json:"username" validate:"required"`
	AvatarIndex int    `json:"avatarIndex" validate:"gte=0"`
}

// SendMessagePayload is the tagged send-message variant: a text body,
// or file metadata when Type is "file". The bytes of a file are never
// sent; Url is a client-side blob reference.
type SendMessagePayload struct {
	Type    string `json:"type,omitempty" validate:"omitempty,oneof=text file"`
	Message string `json:"message,omitempty" validate:"required_unless=Type file"`
	ReplyTo string `json:"replyTo,omitempty"`
	Name    string `json:"name,omitempty" validate:"required_if=Type file"`
	Size    int64  `json:"size,omitempty" validate:"gte=0"`
	Url     string `json:"url,omitempty" validate:"required_if=Type file"`
}

func (p *SendMessagePayload) Kind() types.MessageKind {
	if p.Type == string(types.KindFile) {
		return types.KindFile
	}
	return types.KindText
}

type UpdateReactionPayload struct {
	MessageId string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=add remove"`
}

type EditMessagePayload struct {
	MessageId  string `json:"messageId" validate:"required"`
	NewMessage string `json:"newMessage" validate:"required"`
}

type TypingBroadcast struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type ReactionUpdated struct {
	MessageId string                     `json:"messageId"`
	Reactions map[string]*types.Reaction `json:"reactions"`
}

type MessageEdited struct {
	MessageId  string `json:"messageId"`
	NewMessage string `json:"newMessage"`
}

type MessageDeleted struct {
	MessageId string `json:"messageId"`
}

type MessageRead struct {
	MessageId string `json:"messageId"`
	Username  string `json:"username"`
}

type AvatarUpdated struct {
	UserId      string `json:"userId"`
	AvatarIndex int    `json:"avatarIndex"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
