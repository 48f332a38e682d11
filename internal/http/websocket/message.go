package websocket

import "github.com/google/uuid"

type MessageType int

const (
	Update MessageType = iota
	Welcome
)

// Message is a single frame on the activity socket. Update messages are
// broadcast to every connected admin UI; Welcome messages carry the initial
// state payload and are addressed to a single client via Target.
type Message struct {
	Title  string         `json:"title"`
	Body   map[string]any `json:"arguments"`
	Type   MessageType    `json:"type"`
	Target *uuid.UUID     `json:"-"`
}
