// Package wire defines the pairtimer wire format.
//
// Every message crossing the Transport is UTF-8 JSON wrapped in a two-level
// envelope:
//
//	{
//	  "type":    "timer_change",   // routing discriminator
//	  "payload": "<base64 JSON>"   // message body, decoded only after routing
//	}
//
// The envelope lets a receiver route by type (see PeekType) without decoding
// the body until the handler is selected.
//
// # Message Types
//
//   - full_sync: every non-deleted timer as a wire record
//   - full_sync_request: ask the peer to send its full_sync
//   - timer_change: created / updated / deleted for one timer
//   - quick_action: item toggle or notes edit
//   - runtime_action: a countdown transition to mirror on the peer
//   - context_bundle: the coalesced latest message per logical stream
//
// # Records
//
// Wire records are flattened value copies of model entities. They carry no
// back-references; a TimerRecord embeds its complete item set.
//
// # Encoding Rules
//
// Timestamps are ISO-8601 (RFC 3339 with nanoseconds, UTC). Ids are
// canonical UUID text. Unknown JSON fields are ignored for forward
// compatibility.
package wire
