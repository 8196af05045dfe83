// Package state keeps per-chat conversation state for Telegram bots: a TTL-bound
// in-memory store and per-chat mailboxes that run one job at a time per chat.
// It is domain-agnostic so it can be reused across bots.
package state
