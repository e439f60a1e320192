package game

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateUID returns a 7-character uppercase hex participant identifier
// derived from a time-based (version-1) UUID, mirroring the original
// service's uuid.uuid1().hex[:7].upper().
func GenerateUID() (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	full := hex.EncodeToString(id[:])
	return strings.ToUpper(full[:7]), nil
}
