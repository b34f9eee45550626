// Package metrics records service counters. Metric names carry their
// labels inline, the way github.com/VictoriaMetrics/metrics expects.
package metrics

import (
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// RecordSearch counts requestSearch calls by outcome ("paired"/"queued").
func RecordSearch(outcome string) {
	metrics.GetOrCreateCounter(`anonchat_search_total{outcome="` + outcome + `"}`).Inc()
}

// RecordMatch counts successfully created pairs.
func RecordMatch() {
	metrics.GetOrCreateCounter(`anonchat_matches_total`).Inc()
}

// RecordTeardown counts closed pairs by cause
// ("stop", "research", "delivery_failure").
func RecordTeardown(cause string) {
	metrics.GetOrCreateCounter(`anonchat_teardowns_total{cause="` + cause + `"}`).Inc()
}

// RecordRelay counts relayed payloads by content kind and outcome
// ("delivered", "no_partner", "delivery_failed").
func RecordRelay(kind, outcome string) {
	metrics.GetOrCreateCounter(`anonchat_relay_total{kind="` + kind + `",outcome="` + outcome + `"}`).Inc()
}

// RecordMediaPersist counts media persistence attempts.
func RecordMediaPersist(success bool) {
	metrics.GetOrCreateCounter(`anonchat_media_persist_total{success="` + strconv.FormatBool(success) + `"}`).Inc()
}

// RecordQueueExpiry counts queue entries dropped by TTL expiry.
func RecordQueueExpiry(n int) {
	metrics.GetOrCreateCounter(`anonchat_queue_expired_total`).Add(n)
}

// RecordLedgerWrite counts durable ledger writes by result.
func RecordLedgerWrite(op string, success bool) {
	metrics.GetOrCreateCounter(`anonchat_ledger_writes_total{op="` + op + `",success="` + strconv.FormatBool(success) + `"}`).Inc()
}
