// Package tracer stamps identifiers and timestamps onto execution traces
// and payment sessions.
package tracer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeFormat is the ISO layout used for every trace and audit timestamp.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// NewExecutionID returns a fresh execution id of the form "intent_<uuid>".
func NewExecutionID() string {
	return "intent_" + uuid.NewString()
}

// NewSessionID returns a checkout session id ("cs_" + 24 hex chars).
func NewSessionID() string {
	return prefixedID("cs", 24)
}

// NewBookingReference returns an upper-case booking reference such as "BK_4F9A21C7".
func NewBookingReference() string {
	return strings.ToUpper(prefixedID("BK", 8))
}

// FormatTime renders t in UTC using TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// UTCNowISO returns the current UTC time in ISO format with Z suffix.
func UTCNowISO() string {
	return FormatTime(time.Now())
}

func prefixedID(prefix string, hexLen int) string {
	b := make([]byte, (hexLen+1)/2)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("%s_%x", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b)[:hexLen])
}
