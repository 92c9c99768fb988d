package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SubmissionTime formats the timestamp written next to a submitted team.
func SubmissionTime(t time.Time) string {
	return t.Format("1/2/2006 3:04:05 PM")
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// ExportToken signs a roster export link for one channel.
func ExportToken(secret, channel string) string {
	return HMACSHA256Hex(secret, "export:"+channel)
}

// ValidExportToken compares in constant time. Nothing is valid without a
// secret.
func ValidExportToken(secret, channel, token string) bool {
	if secret == "" {
		return false
	}
	want := ExportToken(secret, channel)
	return hmac.Equal([]byte(want), []byte(strings.TrimSpace(token)))
}
