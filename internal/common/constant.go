// Package common contains shared constants and sentinel errors used across
// amoCRM client components.
package common

const (
	// LegacyLoginParam and LegacyHashParam carry legacy API credentials as
	// query arguments on every request.
	LegacyLoginParam = "USER_LOGIN"
	LegacyHashParam  = "USER_HASH"

	// AuthorizationHeaderName carries the OAuth bearer token.
	AuthorizationHeaderName = "Authorization"

	// APIPathPrefix is the path of the row-limited v2 entity endpoints.
	APIPathPrefix = "/api/v2/"
)
