package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one chat utterance. Source, Sender and ChatID live in dedicated
// columns; every other field the client sent is kept opaque in Payload and
// round-trips through the flat JSON document shape the frontend expects.
type Message struct {
	ChatID    string
	Source    string
	Sender    string
	Payload   map[string]interface{}
	CreatedAt time.Time
}

// NewMessage builds a Message from raw client fields. The chat id is always
// generated server side; a client-supplied chat_id is discarded.
func NewMessage(fields map[string]interface{}) Message {
	m := Message{
		ChatID:    uuid.NewString(),
		Payload:   make(map[string]interface{}, len(fields)),
		CreatedAt: time.Now(),
	}

	for k, v := range fields {
		switch k {
		case "chat_id":
			// never trusted from the wire
		case "source":
			m.Source, _ = v.(string)
		case "sender":
			m.Sender, _ = v.(string)
		default:
			m.Payload[k] = v
		}
	}

	return m
}

// MarshalJSON flattens the message into a single document, payload fields at
// the top level next to chat_id, source and sender.
func (m Message) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(m.Payload)+4)
	for k, v := range m.Payload {
		doc[k] = v
	}
	doc["chat_id"] = m.ChatID
	if m.Source != "" {
		doc["source"] = m.Source
	}
	if m.Sender != "" {
		doc["sender"] = m.Sender
	}
	doc["created_at"] = m.CreatedAt
	return json.Marshal(doc)
}

// PresenceRecord is the per-user online/offline state. LastOnline is nil while
// the user is online.
type PresenceRecord struct {
	UID        string     `json:"uid"`
	Online     bool       `json:"online"`
	LastOnline *time.Time `json:"lastOnline"`
}

// User is a profile document. Presence is populated on lookups when a
// presence record exists for the user's uid.
type User struct {
	ID        int64
	UID       string
	Email     string
	Payload   map[string]interface{}
	CreatedAt time.Time
	Presence  *PresenceRecord
}

// MarshalJSON flattens the profile the same way Message does, merging the
// presence fields in when they are known.
func (u User) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(u.Payload)+6)
	for k, v := range u.Payload {
		doc[k] = v
	}
	doc["id"] = u.ID
	if u.UID != "" {
		doc["uid"] = u.UID
	}
	if u.Email != "" {
		doc["email"] = u.Email
	}
	doc["created_at"] = u.CreatedAt
	if u.Presence != nil {
		doc["online"] = u.Presence.Online
		doc["lastOnline"] = u.Presence.LastOnline
	}
	return json.Marshal(doc)
}
