package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mytesting "github.com/Mejerab/Unoo-Chats-Server/internal/testing"
)

// Store tests run against a live Postgres; point STORE_TEST at it via the
// usual DB_* variables.
func bootstrap(t *testing.T) *Store {
	if os.Getenv("STORE_TEST") == "" {
		t.Skip("STORE_TEST not set")
	}

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cfg := Config{}
	require.NoError(t, env.Parse(&cfg))

	s, err := New(context.Background(), logger.Sugar(), cfg, ConnectionTimeout(10*time.Second))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	return s
}

func TestInsertAndFetchMessage(t *testing.T) {
	s := bootstrap(t)

	source := mytesting.RandString()
	m := NewMessage(map[string]interface{}{"source": source, "sender": "u1", "body": "hi"})
	require.NoError(t, s.InsertMessage(context.Background(), m))

	messages, err := s.MessagesBySource(context.Background(), source, 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, m.ChatID, messages[0].ChatID)
	require.Equal(t, "hi", messages[0].Payload["body"])
}

func TestInsertMessageTwice(t *testing.T) {
	s := bootstrap(t)

	m := NewMessage(map[string]interface{}{"source": mytesting.RandString()})
	require.NoError(t, s.InsertMessage(context.Background(), m))
	require.Equal(t, ErrMessageExists, s.InsertMessage(context.Background(), m))
}

func TestMessagesBySourceNewestFirst(t *testing.T) {
	s := bootstrap(t)

	source := mytesting.RandString()
	first := NewMessage(map[string]interface{}{"source": source, "body": "one"})
	require.NoError(t, s.InsertMessage(context.Background(), first))

	second := NewMessage(map[string]interface{}{"source": source, "body": "two"})
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, s.InsertMessage(context.Background(), second))

	messages, err := s.MessagesBySource(context.Background(), source, 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, second.ChatID, messages[0].ChatID)
}

func TestPatchMessageMergesFields(t *testing.T) {
	s := bootstrap(t)

	source := mytesting.RandString()
	m := NewMessage(map[string]interface{}{"source": source, "body": "hi", "mood": "calm"})
	require.NoError(t, s.InsertMessage(context.Background(), m))

	err := s.PatchMessage(context.Background(), m.ChatID, map[string]interface{}{"body": "edited"})
	require.NoError(t, err)

	messages, err := s.MessagesBySource(context.Background(), source, 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "edited", messages[0].Payload["body"])
	require.Equal(t, "calm", messages[0].Payload["mood"])
}

func TestPatchMessageUpsertsMissing(t *testing.T) {
	s := bootstrap(t)

	chatID := mytesting.RandString()
	source := mytesting.RandString()
	err := s.PatchMessage(context.Background(), chatID, map[string]interface{}{"source": source, "body": "edited"})
	require.NoError(t, err)

	messages, err := s.MessagesBySource(context.Background(), source, 20)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, chatID, messages[0].ChatID)
}

func TestUpsertPresence(t *testing.T) {
	s := bootstrap(t)

	uid := mytesting.RandString()
	require.NoError(t, s.UpsertPresence(context.Background(), uid, true, nil))

	rec, err := s.PresenceByUID(context.Background(), uid)
	require.NoError(t, err)
	require.True(t, rec.Online)
	require.Nil(t, rec.LastOnline)

	now := time.Now()
	require.NoError(t, s.UpsertPresence(context.Background(), uid, false, &now))

	rec, err = s.PresenceByUID(context.Background(), uid)
	require.NoError(t, err)
	require.False(t, rec.Online)
	require.NotNil(t, rec.LastOnline)
}

func TestUserLifecycle(t *testing.T) {
	s := bootstrap(t)

	uid := mytesting.RandString()
	email := mytesting.RandString() + "@example.com"

	id, err := s.CreateUser(context.Background(), map[string]interface{}{"uid": uid, "email": email, "name": "A"})
	require.NoError(t, err)

	_, err = s.CreateUser(context.Background(), map[string]interface{}{"uid": uid})
	require.Equal(t, ErrUserExists, err)

	u, err := s.UserByUID(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, email, u.Email)
	require.Equal(t, "A", u.Payload["name"])
	require.Nil(t, u.Presence)

	require.NoError(t, s.UpsertPresence(context.Background(), uid, true, nil))
	u, err = s.UserByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, u.Presence)
	require.True(t, u.Presence.Online)

	require.NoError(t, s.PatchUser(context.Background(), id, map[string]interface{}{"name": "B"}))
	u, err = s.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "B", u.Payload["name"])
}

func TestUserNotExist(t *testing.T) {
	s := bootstrap(t)

	_, err := s.UserByUID(context.Background(), mytesting.RandString())
	require.Equal(t, ErrUserNotExist, err)
}
