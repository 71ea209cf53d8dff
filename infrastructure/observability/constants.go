package observability

// Metric name prefixes
const (
	MetricPrefix = "treasury"
)

// Metric names
const (
	// Ledger metrics
	LedgerOperationsTotal   = MetricPrefix + ".ledger.operations_total"
	LedgerOperationDuration = MetricPrefix + ".ledger.operation_duration"
	TokensDistributedTotal  = MetricPrefix + ".ledger.tokens_distributed_total"

	// Price oracle metrics
	OracleFetchesTotal = MetricPrefix + ".oracle.fetches_total"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Database metrics
	DatabaseTransactionsTotal   = MetricPrefix + ".database.transactions_total"
	DatabaseTransactionDuration = MetricPrefix + ".database.transaction_duration"
)

// Label keys
const (
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelSource    = "source"
	LabelEventType = "event_type"
	LabelSubject   = "subject"
)

// Outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeCommit   = "commit"
	OutcomeRollback = "rollback"
)
