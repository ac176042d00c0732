package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
//
// Example: An identifier "2001:db8::1" becomes "2001_db8__1".
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewLocalExtractionKey builds the identity guarding a provider's local extractor
// for one client: "<ip>:<provider>:local".
func NewLocalExtractionKey(clientIP, provider string) string {
	return SanitizeKeySegment(clientIP) + ":" + SanitizeKeySegment(provider) + ":local"
}
