package models

import "time"

// TimeLayout is the textual timestamp format used for server and client
// times. Lexicographic comparison of two timestamps in this layout matches
// chronological order, which the log's range query relies on.
const TimeLayout = "2006/01/02 15:04"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseTime parses a timestamp in TimeLayout.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// User identifies a participant: unique username, an opaque avatar
// reference and a local-only set of friend usernames. Friends are an
// annotation kept on the client; the server never interprets them.
type User struct {
	Name      string   `json:"name"`
	Avatar    string   `json:"avatar,omitempty"`
	Connected bool     `json:"connected"`
	Friends   []string `json:"friends,omitempty"`
}

// Message is the closed set of things that travel over a connection.
// Exactly ChatMessage and PresenceUpdate implement it; the router matches
// the variants exhaustively.
type Message interface {
	isMessage()
}

// ChatMessage is a text message with an optional inline image payload,
// addressed to a set of recipients. ServerTime is set once by the server
// at receipt, ClientTime once by the receiving client.
type ChatMessage struct {
	ID         string   `json:"id"`
	Text       string   `json:"text,omitempty"`
	Image      []byte   `json:"image,omitempty"`
	Sender     User     `json:"sender"`
	Receivers  []string `json:"receivers"`
	ServerTime string   `json:"server_time,omitempty"`
	ClientTime string   `json:"client_time,omitempty"`
}

// PresenceUpdate announces a user's connected state. Server-originated
// updates carry a snapshot of every identity currently online.
type PresenceUpdate struct {
	User   User            `json:"user"`
	Online map[string]User `json:"online,omitempty"`
}

func (*ChatMessage) isMessage()    {}
func (*PresenceUpdate) isMessage() {}
