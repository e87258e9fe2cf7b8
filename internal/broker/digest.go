package broker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"coach-backend/internal/contract"
)

type digestInput struct {
	Type    contract.Kind    `json:"type"`
	Data    json.RawMessage  `json:"data"`
	Options contract.Options `json:"options"`
}

// digest identifies a request for caching and coalescing. data must already be the
// JSON encoding of the payload; encoding/json sorts map keys so equal payloads
// produce equal bytes.
func digest(kind contract.Kind, data json.RawMessage, opts contract.Options) (string, error) {
	raw, err := json.Marshal(digestInput{Type: kind, Data: data, Options: opts})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
