package message

// RawMessage is a (sender, body) pair as returned by an adapter fetch
type RawMessage struct {
	Sender string
	Body   string
}

// SessionHandle is an adapter-native reference to a Side A conversation.
// NativeID is opaque to the core; DisplayName is what the chat surface shows.
type SessionHandle struct {
	NativeID    string
	DisplayName string
}
