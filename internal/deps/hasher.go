package deps

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// hashSentinel separates hash input sections so adjacent fields can never
// collide into the same byte stream.
var hashSentinel = []byte{0x1f}

// hashToken computes the deterministic content hash of one token. The hash
// covers, in fixed order: pointer, resolved-or-raw value, metadata (when
// present), provenance context, and the sorted dependency list. JSON
// serialization keeps map keys sorted, so the same logical token hashes
// identically regardless of source object key order.
func hashToken(snap *token.Snapshot, dependencies []string) (string, error) {
	h := sha256.New()

	h.Write([]byte(snap.Pointer))
	h.Write(hashSentinel)

	value := snap.Resolution.ResolvedValue
	if value == nil {
		value = snap.Raw
	}
	if err := writeJSON(h, value); err != nil {
		return "", fmt.Errorf("failed to serialize value: %w", err)
	}
	h.Write(hashSentinel)

	if snap.Metadata != nil {
		if err := writeJSON(h, snap.Metadata); err != nil {
			return "", fmt.Errorf("failed to serialize metadata: %w", err)
		}
	}
	h.Write(hashSentinel)

	if err := writeJSON(h, snap.Provenance); err != nil {
		return "", fmt.Errorf("failed to serialize provenance: %w", err)
	}
	h.Write(hashSentinel)

	for _, dep := range dependencies {
		h.Write([]byte(dep))
		h.Write(hashSentinel)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeJSON(h interface{ Write([]byte) (int, error) }, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = h.Write(data)
	return err
}
