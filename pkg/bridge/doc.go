// Copyright 2024-2026 Aiku AI

// Package bridge implements cross-platform message relaying: a message
// created on one chat platform is converted into a platform-independent
// segment sequence and delivered to every destination piped to its source
// chat, with reply threading preserved across the platform boundary.
//
// # Core Types
//
// [Segment] and [Message] form the universal representation all adapters
// convert to and from.
//
// [Converter] and [Sender] are the per-adapter contracts. Implementations
// self-register by adapter name via [RegisterConverter] and [RegisterSender];
// the empty name holds the fallback used for platforms without a dedicated
// implementation.
//
// [Pipeline] is the orchestrator: it resolves the pipes listening on the
// source chat and fans the converted message out to each destination's
// sender concurrently. A failure delivering to one destination never blocks
// the others.
//
// # Degrade, Don't Abort
//
// Conversion and rendering never fail a whole message because of one
// segment: an untranslatable native segment becomes a bracketed text
// placeholder, and a destination platform that cannot represent a segment
// kind gets its closest text equivalent. End users see a best-effort relayed
// message rather than silence.
//
// # Identity Correlation
//
// After each successful delivery the sender records how the destination
// platform renamed the message in the correlation store
// (database.MsgIDQuery). When someone later replies to the relayed copy,
// the converter resolves the reply back to the original message's ID on the
// other platform, in either direction. Delivery and correlation recording
// are one logical unit: once Send returns, the new correlation is
// immediately resolvable.
//
// # Sub-packages
//
//   - database holds the persistence boundary (correlation store, TTL
//     key-value cache, pipe routing table) on top of go.mau.fi/util/dbutil.
//   - ident holds the platform-independent addressing types.
//   - mediautil holds small media download/sniffing helpers for adapters.
package bridge
