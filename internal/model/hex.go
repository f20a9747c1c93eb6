package model

import (
	"encoding/hex"
	"strings"
)

// NormalizeHex lowercases a 0x-prefixed hex string and ensures the prefix
// is present. Used everywhere a hash, address, or byte string crosses the
// RPC boundary, per spec §3's "addresses are normalized to lowercase".
func NormalizeHex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// AddrFromTopic extracts the right-20-byte address from a 32-byte topic
// hash (glossary: "Indexed parameter"). It is a pure function of its
// input, as required by the round-trip law in spec §8.
func AddrFromTopic(topic string) string {
	topic = strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(topic) < 64 {
		topic = strings.Repeat("0", 64-len(topic)) + topic
	}
	return "0x" + topic[24:64]
}

// TopicDataBytes decodes a 0x-prefixed hex string into raw bytes. Returns
// nil, false on malformed input rather than panicking — callers treat
// that as a decode failure per spec §7's "Decode/parse" error kind.
func TopicDataBytes(s string) ([]byte, bool) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}
