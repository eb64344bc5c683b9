// Package server is the connection gateway: the HTTP surface and the
// websocket endpoint through which clients reach the history service, the
// presence tracker and the broker hub.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/Mejerab/Unoo-Chats-Server/internal/auth"
	"github.com/Mejerab/Unoo-Chats-Server/internal/broker"
	"github.com/Mejerab/Unoo-Chats-Server/internal/history"
	"github.com/Mejerab/Unoo-Chats-Server/internal/presence"
	"github.com/Mejerab/Unoo-Chats-Server/internal/storage"
	"go.uber.org/zap"
)

// Deps groups the explicitly constructed collaborators threaded through every
// operation. No package-level singletons.
type Deps struct {
	Auth     *auth.Authority
	Hub      *broker.Hub
	History  *history.Service
	Presence *presence.Tracker
	Store    *storage.Store
}

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	h             handler
	gw            *gateway
	afterShutdown []func()
}

// NewServer wires the handler and the websocket gateway onto a mux and
// returns a Server ready to Start.
func NewServer(logger *zap.SugaredLogger, deps Deps, adminKey string, opts ...Option) (*Server, error) {
	if deps.Auth == nil || deps.Hub == nil || deps.History == nil || deps.Presence == nil || deps.Store == nil {
		return nil, fmt.Errorf("server: missing dependency")
	}

	srv := &Server{
		logger: logger,
		h: handler{
			logger:   logger,
			auth:     deps.Auth,
			history:  deps.History,
			store:    deps.Store,
			adminKey: adminKey,
		},
		gw: newGateway(logger, deps.Hub, deps.History, deps.Presence),
	}

	mux := http.NewServeMux()

	mux.Handle("POST /jwt", enforceJSON(http.HandlerFunc(srv.h.issueToken)))
	mux.Handle("POST /logout", http.HandlerFunc(srv.h.logout))

	mux.Handle("GET /chats", http.HandlerFunc(srv.h.allChats))
	mux.Handle("GET /chats/source/{source}", srv.h.requireToken(http.HandlerFunc(srv.h.chatsBySource)))
	mux.Handle("PATCH /chats/edit/{chat_id}", srv.h.requireToken(enforceJSON(http.HandlerFunc(srv.h.editChat))))
	mux.Handle("PATCH /chats/delete/{id}", srv.h.requireToken(enforceJSON(http.HandlerFunc(srv.h.deleteChat))))
	mux.Handle("DELETE /chats", srv.h.requireAdminKey(http.HandlerFunc(srv.h.clearChats)))

	mux.Handle("POST /users", enforceJSON(http.HandlerFunc(srv.h.createUser)))
	mux.Handle("GET /users", http.HandlerFunc(srv.h.listUsers))
	mux.Handle("GET /users/uid/{uid}", http.HandlerFunc(srv.h.userByUID))
	mux.Handle("GET /users/id/{id}", http.HandlerFunc(srv.h.userByID))
	mux.Handle("GET /users/{email}", http.HandlerFunc(srv.h.userByEmail))
	mux.Handle("PATCH /users/patch/{id}", enforceJSON(http.HandlerFunc(srv.h.patchUser)))

	mux.Handle("GET /ws", http.HandlerFunc(srv.gw.handleWS))

	srv.httpServer = &http.Server{
		Handler: logRequests(mux, logger.Desugar()),
	}

	cfg := &config{httpServer: srv.httpServer}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	srv.afterShutdown = cfg.afterShutdown

	return srv, nil
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
