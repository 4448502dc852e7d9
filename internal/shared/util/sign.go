package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SignKey returns a hex HMAC-SHA256 over key and its expiry.
func SignKey(secret, key string, expires time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(key))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(expires.Unix(), 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyKey checks a signature produced by SignKey and rejects expired links.
func VerifyKey(secret, key string, expires time.Time, sig string, now time.Time) bool {
	if !now.Before(expires) {
		return false
	}
	want := SignKey(secret, key, expires)
	return hmac.Equal([]byte(want), []byte(sig))
}
