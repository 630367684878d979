package uuidutil

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

var escaper = strings.NewReplacer("9", "99", "-", "90", "_", "91")

// UUID is a random UUID as 32 hex digits.
func UUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// ShortUUID refer to https://stackoverflow.com/questions/37934162/output-uuid-in-go-as-a-short-string
func ShortUUID() string {
	id := uuid.New()
	return escaper.Replace(base64.RawURLEncoding.EncodeToString(id[:]))
}

// ClientID is prefix followed by a short UUID, fit for MQTT client ids that
// brokers limit to 23 characters.
func ClientID(prefix string) string {
	id := prefix + ShortUUID()
	if len(id) > 23 {
		id = id[:23]
	}
	return id
}
