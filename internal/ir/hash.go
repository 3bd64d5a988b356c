package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "actionplan/event/v1"
	DomainInput = "actionplan/input/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID of an action event.
// Re-journaling the same transition yields the same ID, which makes journal
// writes idempotent.
func EventID(planID string, actionID int64, phase Phase, state string, seq int64) (string, error) {
	obj := IRObject{
		"plan_id":   IRString(planID),
		"action_id": IRInt(actionID),
		"phase":     IRString(string(phase)),
		"state":     IRString(state),
		"seq":       IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// InputHash fingerprints an action input. Planned inputs may still contain
// refs; those hash by their encoded form.
func InputHash(input IRObject) (string, error) {
	if input == nil {
		input = IRObject{}
	}
	canonical, err := MarshalCanonical(input)
	if err != nil {
		return "", fmt.Errorf("InputHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInput, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(planID string, actionID int64, phase Phase, state string, seq int64) string {
	id, err := EventID(planID, actionID, phase, state, seq)
	if err != nil {
		panic(err)
	}
	return id
}
