package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID returns an opaque routing identifier. It is not a secret.
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("eval_%d_%s", now.UnixMilli(), suffix[:9])
}
