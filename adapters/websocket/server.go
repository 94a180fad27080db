package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/usecase"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

// Server carries chat requests over websocket. Every inbound text message
// is a chat request body; every outbound text message is one frame payload,
// and each request ends with a "[DONE]" payload.
type Server struct {
	upgrader websocket.Upgrader
	svc      *usecase.ChatService
	limiter  domain.RateLimiter
	hub      *Hub
}

func NewServer(svc *usecase.ChatService, limiter domain.RateLimiter) *Server {
	return &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		svc:      svc,
		limiter:  limiter,
		hub:      NewHub(),
	}
}

func (s *Server) RunWebsocketHub(ctx context.Context) {
	s.hub.Run(ctx)
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// Serve handles one inbound chat request for clientID and writes its frames
// through send.
func (s *Server) Serve(ctx context.Context, clientID string, message []byte, send func([]byte) error) {
	logger := log.WithCtx(ctx)

	var req usecase.ChatRequest
	if err := json.Unmarshal(message, &req); err != nil {
		logger.Debug("Invalid websocket chat request", zap.Error(err))
		s.reject(ctx, send, i18n.Text(language.Arabic, i18n.InvalidRequest))
		return
	}

	if s.limiter != nil && !s.limiter.Allow(clientID) {
		logger.Info("Client rate limited")
		s.reject(ctx, send, i18n.Text(language.Arabic, i18n.RateLimited))
		return
	}

	p, err := s.svc.Prepare(req)
	if err != nil {
		s.reject(ctx, send, usecase.UserMessage(err, language.Arabic, false))
		return
	}

	format := stream.FormatLegacy
	if p.DeepSearch {
		format = stream.FormatTyped
	}
	if err := s.svc.Stream(ctx, p, stream.NewSink(format, send)); err != nil {
		logger.Warn("Websocket chat ended with error", zap.Error(err))
	}
}

// reject answers a request that never reaches the orchestrator.
func (s *Server) reject(ctx context.Context, send func([]byte) error, message string) {
	sink := stream.NewSink(stream.FormatTyped, send)
	if err := sink.Emit(domain.ErrorEvent(message)); err != nil {
		log.WithCtx(ctx).Debug("Failed to send error frame", zap.Error(err))
		return
	}
	_ = sink.Emit(domain.DoneEvent())
}
