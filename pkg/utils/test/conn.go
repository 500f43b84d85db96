package testutils

import (
	"context"

	"github.com/papercomputeco/ene/pkg/session"
)

// ScriptedConn is a session transport that replays a fixed sequence of
// inbound messages and records everything sent back. Receive returns
// session.ErrClosed once the script is exhausted.
type ScriptedConn struct {
	// Inbound is consumed one message per Receive call.
	Inbound []string

	// Sent accumulates every outbound message.
	Sent []string

	next int
}

// NewScriptedConn creates a connection that will deliver the given inbound
// messages in order.
func NewScriptedConn(inbound ...string) *ScriptedConn {
	return &ScriptedConn{Inbound: inbound}
}

func (c *ScriptedConn) Receive(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.next >= len(c.Inbound) {
		return "", session.ErrClosed
	}
	msg := c.Inbound[c.next]
	c.next++
	return msg, nil
}

func (c *ScriptedConn) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Sent = append(c.Sent, text)
	return nil
}
