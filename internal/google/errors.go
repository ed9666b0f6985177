package google

import (
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

// IsSyncTokenExpired reports whether err means the stored sync token is no
// longer valid and a full sync is required. Google signals this with HTTP
// 410 Gone, but the message shape varies across transport layers.
func IsSyncTokenExpired(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 410 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "410") ||
		strings.Contains(msg, "Sync token") ||
		strings.Contains(msg, "expired")
}
