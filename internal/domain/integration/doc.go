// Package integration contains the Integration bounded context.
// It owns the clients of the operator, their links to external order
// providers and the credentials those links carry.
//
// Key concepts:
//   - Client: a merchant whose orders the operator delivers
//   - ProviderLink: a client's authorized account on one provider
//   - Adapter: port turning raw provider payloads into shipment drafts
//   - OrderSource / LiveTracker: ports pulling orders or live status
//   - OAuthProvider: port exchanging authorization codes and refresh tokens
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
