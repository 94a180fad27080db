package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/prompt"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/sanitizer"
	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/usecase"
	"github.com/satriahrh/cocoa-fruit/gateway/utils/i18n"
)

type echoLlm struct{}

func (echoLlm) Ready() error { return nil }

func (echoLlm) Complete(_ context.Context, req domain.GenerationRequest) (string, error) {
	return "re: " + req.Messages[len(req.Messages)-1].Content, nil
}

func (e echoLlm) Stream(ctx context.Context, req domain.GenerationRequest, onDelta func(string) error) (string, error) {
	text, _ := e.Complete(ctx, req)
	for _, word := range strings.SplitAfter(text, " ") {
		if err := onDelta(word); err != nil {
			return "", err
		}
	}
	return text, nil
}

type countingLimiter struct {
	mu   sync.Mutex
	left int
	seen []string
}

func (l *countingLimiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, clientID)
	if l.left == 0 {
		return false
	}
	l.left--
	return true
}

func newTestServer(limiter domain.RateLimiter) *Server {
	o := usecase.NewOrchestrator(echoLlm{}, []domain.Candidate{"model-a"})
	svc := usecase.NewChatService(o, usecase.NewDeepSearch(usecase.NewAggregator(nil), o), sanitizer.New(), prompt.NewBuilder())
	return NewServer(svc, limiter)
}

type capture struct {
	payloads []string
}

func (c *capture) send(p []byte) error {
	c.payloads = append(c.payloads, string(p))
	return nil
}

func TestServeStreamsLegacyFrames(t *testing.T) {
	s := newTestServer(nil)
	var out capture

	s.Serve(context.Background(), "client-1", []byte(`{"messages":[{"role":"user","content":"hello there"}]}`), out.send)

	assert.Equal(t, []string{
		`{"chunk":"re: "}`,
		`{"chunk":"hello "}`,
		`{"chunk":"there"}`,
		`{"chunk":"__MODEL__:model-a"}`,
		`[DONE]`,
	}, out.payloads)
}

func TestServeDeepSearchUsesTypedFrames(t *testing.T) {
	s := newTestServer(nil)
	var out capture

	s.Serve(context.Background(), "client-1", []byte(`{"messages":[{"content":"weather"}],"deepSearch":true}`), out.send)

	require.GreaterOrEqual(t, len(out.payloads), 3)
	assert.True(t, strings.HasPrefix(out.payloads[0], `{"type":"sources"`))
	assert.True(t, strings.HasPrefix(out.payloads[1], `{"type":"text"`))
	assert.Equal(t, stream.DoneSentinel, out.payloads[len(out.payloads)-1])
}

func TestServeRejects(t *testing.T) {
	tests := []struct {
		name    string
		limiter *countingLimiter
		message string
		want    i18n.Key
	}{
		{"invalid json", &countingLimiter{left: 1}, `{`, i18n.InvalidRequest},
		{"rate limited", &countingLimiter{left: 0}, `{"messages":[{"content":"hi"}]}`, i18n.RateLimited},
		{"validation", &countingLimiter{left: 1}, `{"messages":[]}`, i18n.InvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.limiter)
			var out capture

			s.Serve(context.Background(), "10.0.0.9", []byte(tt.message), out.send)

			require.Len(t, out.payloads, 2)
			e, err := stream.ParsePayload([]byte(out.payloads[0]))
			require.NoError(t, err)
			assert.Equal(t, domain.EventError, e.Type)
			assert.Equal(t, i18n.Text(language.Arabic, tt.want), e.Text)
			assert.Equal(t, stream.DoneSentinel, out.payloads[1])
		})
	}
}

func TestServeLimitsPerClient(t *testing.T) {
	limiter := &countingLimiter{left: 5}
	s := newTestServer(limiter)

	s.Serve(context.Background(), "203.0.113.7", []byte(`{"messages":[{"content":"hi"}]}`), (&capture{}).send)
	assert.Equal(t, []string{"203.0.113.7"}, limiter.seen)
}

func TestHandlerEndToEnd(t *testing.T) {
	s := newTestServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.RunWebsocketHub(ctx)

	e := echo.New()
	e.GET("/ws", s.Handler)
	server := httptest.NewServer(e)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.GetHub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"messages":[{"content":"ping pong"}]}`)))

	var text strings.Builder
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := stream.ParsePayload(payload)
		require.NoError(t, err)
		if ev.Type == domain.EventDone {
			break
		}
		if ev.Type == domain.EventText {
			text.WriteString(ev.Text)
		}
	}
	assert.Equal(t, "re: ping pong", text.String())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return s.GetHub().ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := NewClient(context.Background(), nil, "req-1", "10.0.0.1")
	hub.Register(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-stopped
	assert.True(t, client.IsClosed())
	assert.Equal(t, 0, hub.ClientCount())

	late := NewClient(context.Background(), nil, "req-2", "10.0.0.2")
	hub.Register(late)
	assert.True(t, late.IsClosed())
	hub.Unregister(late)
}

func TestSendMessageAfterClose(t *testing.T) {
	client := NewClient(context.Background(), nil, "", "")
	require.NoError(t, client.SendMessage([]byte("queued")))
	client.Close()
	client.Close()
	assert.ErrorIs(t, client.SendMessage([]byte("late")), websocket.ErrCloseSent)
}
