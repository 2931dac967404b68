package audit

import (
	"context"

	"github.com/weiawesome/classroom-signal/pkg/log"
)

// Audit actions for the classroom signaling service.
const (
	ActionConnect     = "classroom.connect"
	ActionJoinRoom    = "classroom.join_room"
	ActionLeaveRoom   = "classroom.leave_room"
	ActionStealthJoin = "classroom.stealth_join"
	ActionMuteAll     = "classroom.mute_all"
	ActionToggleMute  = "classroom.toggle_mute"
	ActionForbidden   = "classroom.forbidden"
	ActionDisconnect  = "classroom.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, sessionID, roomID, msg string) {
	l := log.Ctx(ctx)
	e := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldClientID, sessionID)
	if roomID != "" {
		e = e.Str(log.FieldRoomID, roomID)
	}
	e.Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, sessionID, roomID, detail, msg string) {
	l := log.Ctx(ctx)
	e := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldClientID, sessionID).
		Str(FieldDetail, detail)
	if roomID != "" {
		e = e.Str(log.FieldRoomID, roomID)
	}
	e.Msg(msg)
}
