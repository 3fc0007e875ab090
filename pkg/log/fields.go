package log

const serviceName = "studyroom-chat"

// Shared structured-log field names. Keeping them in one place means the
// room, connection, and user fields are greppable across the whole service.
const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Chat
	FieldRoom      = "room"
	FieldUsername  = "username"
	FieldConnID    = "conn_id"
	FieldMessageID = "message_id"
	FieldFrameType = "frame_type"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
