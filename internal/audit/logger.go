package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Event represents an audit log event for a session state change.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`    // Stable user ID
	Details   string    `json:"details,omitempty"` // Entry path, provenance, reason
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"` // Error message if the action failed
}

const serviceName = "gtgram-session"

// Auditable session actions.
const (
	ActionLogin         = "login"
	ActionLogout        = "logout"
	ActionRegister      = "register"
	ActionRestore       = "session_restore"
	ActionAutoProvision = "auto_provision"
)

var auditLogger = log.Output(os.Stdout).With().Logger()

// Log records an audit event.
func Log(action, user, details string, success bool, err error) {
	event := Event{
		Timestamp: time.Now().UTC(),
		Service:   serviceName,
		Action:    action,
		User:      user,
		Details:   details,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}

	entry, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		// Fallback to unstructured logging if JSON marshaling fails
		log.Error().Err(marshalErr).Msg("Failed to marshal audit event to JSON")
		auditLogger.Error().
			Str("service", serviceName).
			Str("action", action).
			Str("user", user).
			Str("details", details).
			Bool("success", success).
			Err(err).
			Msg("Audit Log (fallback)")
		return
	}
	auditLogger.Log().RawJSON("audit_event", entry).Msg("")
}
