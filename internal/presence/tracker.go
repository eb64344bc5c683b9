// Package presence derives each user's online/offline state from connection
// lifecycle events and persists it keyed by uid, not by connection.
package presence

import (
	"context"
	"time"

	"github.com/Mejerab/Unoo-Chats-Server/internal/broker"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

// Store is what the tracker needs from the persistent store. The upsert
// creates the record on a user's first connection.
type Store interface {
	UpsertPresence(ctx context.Context, uid string, online bool, lastOnline *time.Time) error
}

// Tracker is stateless over the store and the broker hub. The broadcast
// always precedes the durable write, and a failed write is logged and
// swallowed so presence events reach live peers regardless of store health.
type Tracker struct {
	logger *zap.SugaredLogger
	store  Store
	hub    *broker.Hub
}

// New returns a Tracker publishing on hub and persisting through store.
func New(logger *zap.SugaredLogger, store Store, hub *broker.Hub) *Tracker {
	return &Tracker{logger: logger, store: store, hub: hub}
}

// Connected handles a new connection for uid: userOnline to all other
// subscribers, then the record goes online with lastOnline cleared.
func (t *Tracker) Connected(ctx context.Context, uid string, origin *broker.Subscriber) {
	if uid == "" {
		t.logger.Info("Connection without uid, skipping presence transition")
		return
	}

	t.hub.PublishExcept(broker.EventUserOnline, uid, origin)
	t.upsert(ctx, uid, true, nil)
}

// Logout handles an explicit client logout. The caller terminates the
// connection afterwards; the later network disconnect repeats the same
// terminal write, which is harmless.
func (t *Tracker) Logout(ctx context.Context, uid string, origin *broker.Subscriber) {
	t.goOffline(ctx, uid, origin)
}

// Disconnected handles a network-level termination without explicit logout.
func (t *Tracker) Disconnected(ctx context.Context, uid string, origin *broker.Subscriber) {
	t.goOffline(ctx, uid, origin)
}

func (t *Tracker) goOffline(ctx context.Context, uid string, origin *broker.Subscriber) {
	if uid == "" {
		return
	}

	t.hub.PublishExcept(broker.EventUserOffline, uid, origin)
	now := time.Now()
	t.upsert(ctx, uid, false, &now)
}

func (t *Tracker) upsert(ctx context.Context, uid string, online bool, lastOnline *time.Time) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := t.store.UpsertPresence(ctx, uid, online, lastOnline); err != nil {
		t.logger.Errorf("upserting presence for %s: %v", uid, err)
	}
}
