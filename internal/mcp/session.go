package mcp

import (
	"context"

	"github.com/deixis/aptmcp/internal/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sessionLog forwards operation logs to the client as
// notifications/message. The SDK drops messages below the level the client
// selected, and all messages when it selected none.
type sessionLog struct {
	ctx     context.Context
	session *mcp.ServerSession
}

func sessionLogger(ctx context.Context, session *mcp.ServerSession) logging.Logger {
	if session == nil {
		return nil
	}
	return sessionLog{ctx: ctx, session: session}
}

func (l sessionLog) send(level mcp.LoggingLevel, msg string, kv []any) {
	data := logging.Fields(kv...)
	data["msg"] = msg
	_ = l.session.Log(l.ctx, &mcp.LoggingMessageParams{
		Logger: "aptmcp",
		Level:  level,
		Data:   data,
	})
}

func (l sessionLog) Info(msg string, kv ...any)  { l.send("info", msg, kv) }
func (l sessionLog) Warn(msg string, kv ...any)  { l.send("warning", msg, kv) }
func (l sessionLog) Error(msg string, kv ...any) { l.send("error", msg, kv) }
