// Package chat manages persistent Twitch chat connections on behalf of
// stored (tenant, account) credentials.
//
// It provides three pieces:
//   - Conn: one authenticated IRC session per (tenant, account). It runs the
//     connect → authenticate → join channels → ready lifecycle, reconnects
//     with exponential backoff when the transport drops, and exposes
//     Join/Part/Send whose JOIN/PART acknowledgements are awaited through a
//     Correlator.
//   - Correlator: a waiter table keyed by (connection, kind, account,
//     channel). The receive loop publishes decoded events; callers that sent a
//     command wait for the matching confirmation with a timeout.
//   - Registry: maps (tenant, account) to its live Conn, creating at most one
//     per key even under concurrent callers, and forgetting it when it closes.
//
// Credentials are validated through a CredentialGate before every connect
// attempt. An invalid credential aborts the connection and emits a single
// credential-expired notice per revocation episode (tracked by the stored
// ExpiryNotified flag, cleared when a new token is stored).
package chat
