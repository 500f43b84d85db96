package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/papercomputeco/ene/pkg/session"
)

// websocketHandler upgrades /ws/:id and hands the connection to the session
// loop. Fiber's fasthttp layer cannot hijack for gorilla directly, so the
// route drops down to net/http via the adaptor.
func (s *Server) websocketHandler() fiber.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return func(c *fiber.Ctx) error {
		conversationID, err := conversationParam(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid conversation id"})
		}

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				s.logger.Warn("websocket upgrade failed",
					"conversation_id", conversationID, "error", err)
				return
			}
			defer ws.Close()

			if err := s.loop.Run(r.Context(), &wsConn{ws: ws}, conversationID); err != nil {
				s.logger.Warn("session ended with transport error",
					"conversation_id", conversationID, "error", err)
			}
		})

		return adaptor.HTTPHandler(handler)(c)
	}
}

// wsConn adapts a gorilla websocket to the session transport. Writes are
// serialized; gorilla permits one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) Receive(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return "", session.ErrClosed
			}
			return "", fmt.Errorf("reading message: %w", err)
		}

		// Binary frames carry nothing meaningful here; wait for text.
		if msgType == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (c *wsConn) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}
