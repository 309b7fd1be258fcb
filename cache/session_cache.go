package cache

import (
	"context"
	"strconv"
	"time"
)

// Key names for the persisted entries. Preserved from the original web
// client's localStorage schema so mixed deployments stay compatible.
const (
	KeyUser          = "gtgram_user"
	KeyLoginTime     = "gtgram_login_time"
	KeyAutoLogin     = "gtgram_auto_login"
	KeyPendingAction = "gtgram_pending_action"
)

// RawSession is the tuple a SessionCache persists: the JSON-serialized
// session record, the epoch-millisecond login timestamp, and the
// auto-login flag. All three must be present and mutually consistent;
// partial state is reported as absent.
type RawSession struct {
	Record    []byte
	LoginTime time.Time
	AutoLogin bool
}

// SessionCache is durable, string-keyed storage for at most one session.
// Read returns (nil, nil) when no usable payload exists; errors are
// reserved for backend failures.
type SessionCache interface {
	Read(ctx context.Context) (*RawSession, error)
	Write(ctx context.Context, raw *RawSession) error
	Clear(ctx context.Context) error
}

// encodeLoginTime and decodeRaw define the wire form shared by all
// backends: decimal epoch millis and "true"/"false" strings.

func encodeLoginTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func encodeAutoLogin(b bool) string {
	return strconv.FormatBool(b)
}

// decodeRaw rebuilds a RawSession from the three stored strings. The
// second return value is false when any entry is missing or unparsable,
// which callers treat as "no session".
func decodeRaw(record, loginTime, autoLogin string) (*RawSession, bool) {
	if record == "" || loginTime == "" || autoLogin == "" {
		return nil, false
	}
	millis, err := strconv.ParseInt(loginTime, 10, 64)
	if err != nil {
		return nil, false
	}
	auto, err := strconv.ParseBool(autoLogin)
	if err != nil {
		return nil, false
	}
	return &RawSession{
		Record:    []byte(record),
		LoginTime: time.UnixMilli(millis),
		AutoLogin: auto,
	}, true
}
