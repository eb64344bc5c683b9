// Package history serves bounded slices of stored chat messages and applies
// edits and tombstone deletes as upserts that also trigger a broadcast.
package history

import (
	"context"
	"time"

	"github.com/Mejerab/Unoo-Chats-Server/internal/broker"
	"github.com/Mejerab/Unoo-Chats-Server/internal/storage"
	"go.uber.org/zap"
)

// DefaultFetchLimit bounds a history page when the caller does not say.
const DefaultFetchLimit = 20

// storeTimeout bounds every durable operation issued from a realtime path so
// a stalled store cannot starve other connections.
const storeTimeout = 5 * time.Second

// Store is what the service needs from the persistent store.
type Store interface {
	InsertMessage(ctx context.Context, m storage.Message) error
	MessagesBySource(ctx context.Context, source string, limit int) ([]storage.Message, error)
	AllMessages(ctx context.Context) ([]storage.Message, error)
	PatchMessage(ctx context.Context, chatID string, fields map[string]interface{}) error
	DeleteAllMessages(ctx context.Context) (int64, error)
}

// Service is stateless over the store and the broker hub.
type Service struct {
	logger *zap.SugaredLogger
	store  Store
	hub    *broker.Hub
}

// New returns a Service publishing on hub and persisting through store.
func New(logger *zap.SugaredLogger, store Store, hub *broker.Hub) *Service {
	return &Service{logger: logger, store: store, hub: hub}
}

// Append stamps the raw client fields with a fresh chat id, broadcasts the
// message on the chats event, then writes it durably. The broadcast is never
// retracted: a failed write is logged and swallowed, live viewers keep the
// message and only history replay after reconnect is at risk.
func (s *Service) Append(ctx context.Context, fields map[string]interface{}) storage.Message {
	m := storage.NewMessage(fields)

	s.hub.Publish(broker.EventChats, m)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := s.store.InsertMessage(ctx, m); err != nil {
		s.logger.Errorf("inserting message %s: %v", m.ChatID, err)
	}

	return m
}

// Fetch returns at most limit most recent messages for the source in
// ascending chronological order. Read failures propagate to the caller.
func (s *Service) Fetch(ctx context.Context, source string, limit int) ([]storage.Message, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	messages, err := s.store.MessagesBySource(ctx, source, limit)
	if err != nil {
		return nil, err
	}

	// store serves newest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// All returns every message for every source, unbounded.
func (s *Service) All(ctx context.Context) ([]storage.Message, error) {
	return s.store.AllMessages(ctx)
}

// Edit merges fields into the message addressed by chatID, creating it when
// missing, then broadcasts the patch payload only on updatedChats.
func (s *Service) Edit(ctx context.Context, chatID string, fields map[string]interface{}) error {
	if err := s.applyPatch(ctx, chatID, fields); err != nil {
		return err
	}

	s.hub.Publish(broker.EventUpdatedChats, fields)

	return nil
}

// Delete is the same upsert as Edit; removal is a tombstone carried in the
// fields, not a dropped row. The broadcast payload gains the chat id.
func (s *Service) Delete(ctx context.Context, chatID string, fields map[string]interface{}) error {
	if err := s.applyPatch(ctx, chatID, fields); err != nil {
		return err
	}

	payload := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["chat_id"] = chatID
	s.hub.Publish(broker.EventChatDelete, payload)

	return nil
}

// ClearAll unconditionally drops every message. Administrative reset only.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAllMessages(ctx)
}

func (s *Service) applyPatch(ctx context.Context, chatID string, fields map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return s.store.PatchMessage(ctx, chatID, fields)
}
