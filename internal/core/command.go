package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin subscribes the client to a room and replays its history.
	CommandJoin CommandKind = iota
	// CommandSend stores a message and delivers it to room subscribers.
	CommandSend
	// CommandOpenDirect joins the direct room shared with Peer.
	CommandOpenDirect
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Room    string
	Peer    string
	Payload Payload
}
