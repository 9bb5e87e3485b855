package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vaultcrack_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route"},
	)

	VaultAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_vault_attempts_total",
			Help: "Vault crack attempts by monster and outcome",
		},
		[]string{"monster", "outcome"},
	)

	CombatSessionAuditTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_combat_session_audit_total",
			Help: "Vault attempts compared with their recorded combat session, by result",
		},
		[]string{"result"},
	)

	SettlementMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaultcrack_settlement_mismatch_total",
			Help: "Winning rolls whose prize claim failed on chain",
		},
	)

	OracleRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_oracle_requests_total",
			Help: "Fairness oracle requests by status",
		},
		[]string{"status"},
	)

	OracleRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vaultcrack_oracle_request_duration_seconds",
			Help:    "Duration of fairness oracle requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_transactions_total",
			Help: "Submitted ledger program transactions by instruction and status",
		},
		[]string{"instruction", "status"},
	)

	RPCReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_rpc_reads_total",
			Help: "Chain account reads by account kind and status",
		},
		[]string{"account", "status"},
	)

	SignerBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vaultcrack_backend_signer_balance_lamports",
			Help: "Last observed balance of the backend signer",
		},
	)

	SignerBalanceLow = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vaultcrack_backend_signer_balance_low",
			Help: "1 when the backend signer is below its minimum operating balance",
		},
	)

	RelayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_relay_events_total",
			Help: "Events published to the relay by topic",
		},
		[]string{"topic"},
	)

	RelayDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultcrack_relay_dropped_total",
			Help: "Relay messages dropped because a subscriber fell behind",
		},
		[]string{"topic"},
	)

	RelaySubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vaultcrack_relay_websocket_clients",
			Help: "Connected real-time relay clients",
		},
	)
)
