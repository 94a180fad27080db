package websocket

import (
	"context"

	"github.com/labstack/echo/v4"
)

// Handler upgrades GET /ws and blocks until the connection is gone.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	clientID := c.RealIP()
	client := NewClient(c.Request().Context(), conn, requestID, clientID)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run(func(ctx context.Context, message []byte) {
		s.Serve(ctx, clientID, message, client.SendMessage)
	})

	<-client.Context().Done()
	return nil
}
