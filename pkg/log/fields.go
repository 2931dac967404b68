package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Connection and room
	FieldClientID    = "client_id"
	FieldRoomID      = "room_id"
	FieldTargetID    = "target_id"
	FieldUserID      = "user_id"
	FieldDisplayName = "display_name"
	FieldMessageType = "message_type"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
