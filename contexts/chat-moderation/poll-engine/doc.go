// Package pollengine implements the kick-poll lifecycle inside the
// chat-moderation context.
//
// The module owns poll creation (with open-poll deduplication and a
// sliding-window creation quota), vote casting and aggregation, one-shot
// finalization with enforcement of the winning decision, and poll-related
// event production through an outbox-backed relay. Business rules live in
// application/domain layers; storage and the chat transport sit behind ports
// and adapters.
package pollengine
