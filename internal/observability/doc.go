// Package observability provides the audit event log, diagnostic logging,
// metrics and alerting for taskgraph. Committed mutations are persisted as
// JSON Lines (JSONL); metrics and alerts are derived on demand from that log.
package observability
