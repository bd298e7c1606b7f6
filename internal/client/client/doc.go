// Package client contains the transport layer of the amoCRM client.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) used by the
//     service layer: Do executes a paged list or an add/update batch, Account
//     reports the identity the client is bound to.
//  2. A concrete HTTP implementation for the amoCRM v2 REST API (see
//     HTTPClient). List calls are GET requests with query arguments, batch
//     calls POST {"add": [...]} or {"update": [...]}, and records are read
//     from the "_embedded.items" envelope.
//  3. Credentials: legacy login/hash query authentication and OAuth bearer
//     tokens whose account identity is taken from the token claims.
//
// # Error Handling
//
// Non-2xx responses are returned as *APIError, which unwraps to
// ErrUnauthorized, common.ErrorNotFound or ErrUnavailable depending on the
// status code. Credential problems are reported as ErrInvalidCredentials.
// No retries are attempted.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All requests honor the context
// passed to Do.
//
// See Also
//
//   - Interface:   Client
//   - HTTP impl:   HTTPClient
//   - Credentials: LegacyCredentials, OAuthCredentials
//   - Errors:      APIError, ErrUnavailable, ErrUnauthorized, ErrInvalidCredentials
package client
