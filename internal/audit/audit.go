// Package audit emits structured audit entries for user-visible actions.
package audit

import (
	"context"

	"github.com/studyroomhq/studyroom-chat/pkg/log"
)

// Audit actions.
const (
	ActionJoin          = "chat.join"
	ActionLeave         = "chat.leave"
	ActionMessage       = "chat.message"
	ActionMute          = "chat.mute"
	ActionUnmute        = "chat.unmute"
	ActionDeleteMessage = "chat.delete_message"
	ActionRegister      = "auth.register"
	ActionLogin         = "auth.login"
	ActionUpload        = "file.upload"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldTarget = "target"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, room, username, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoom, room).
		Str(log.FieldUsername, username).
		Msg(msg)
}

// LogWithTarget emits an audit log naming the acted-upon user or object.
func LogWithTarget(ctx context.Context, action, room, username, target, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoom, room).
		Str(log.FieldUsername, username).
		Str(FieldTarget, target).
		Msg(msg)
}
