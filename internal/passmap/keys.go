package passmap

import "strings"

const keySeparator = "|"

// NormalizeKeyPart lowercases and trims one component of a mapping key.
func NormalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LegacyKey builds the original mapping key: membership|event-name.
func LegacyKey(membership, eventName string) string {
	return NormalizeKeyPart(membership) + keySeparator + NormalizeKeyPart(eventName)
}

// V2Key builds the newer mapping key: event-type|event-name. Returns "" when
// the event type is empty, since such a key can never be whitelisted.
func V2Key(eventType, eventName string) string {
	if NormalizeKeyPart(eventType) == "" {
		return ""
	}
	return NormalizeKeyPart(eventType) + keySeparator + NormalizeKeyPart(eventName)
}

// CandidateKeys returns the lookup keys for a log in resolution-preference
// order: v2 first, legacy second. Empty candidates are dropped.
func CandidateKeys(membership, eventName string, eventType *string) []string {
	keys := make([]string, 0, 2)
	if eventType != nil {
		if v2 := V2Key(*eventType, eventName); v2 != "" {
			keys = append(keys, v2)
		}
	}
	keys = append(keys, LegacyKey(membership, eventName))
	return keys
}
