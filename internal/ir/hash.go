package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints. The version suffix allows a
// future algorithm change without colliding with stored values.
const (
	DomainRow   = "livecoll/row/v1"
	DomainValue = "livecoll/value/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RowFingerprint hashes a (possibly projected) row. Two rows have the same
// fingerprint exactly when their canonical encodings match, which is how the
// change notifier detects modifications.
func RowFingerprint(row IRObject) (string, error) {
	canonical, err := MarshalCanonical(row)
	if err != nil {
		return "", fmt.Errorf("RowFingerprint: %w", err)
	}
	return hashWithDomain(DomainRow, canonical), nil
}

// ValueFingerprint hashes a single value (primitive collection elements,
// dictionary values).
func ValueFingerprint(v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueFingerprint: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// MustRowFingerprint is like RowFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRowFingerprint(row IRObject) string {
	fp, err := RowFingerprint(row)
	if err != nil {
		panic(err)
	}
	return fp
}
