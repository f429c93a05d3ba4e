package constants

// Strategy identifiers recorded in the sync_status ledger
const (
	SyncStrategyRecency       = "recency"
	SyncStrategyHorizon       = "horizon"
	SyncStrategyScheduled     = "scheduled"
	SyncStrategyExplicitRange = "explicit_range"
	SyncStrategySingleRef     = "single_ref"
	SyncStrategyBackfill      = "backfill"
)

// Pipeline stages used to label per-reference failures
const (
	StageSearch   = "search"
	StageDetail   = "detail"
	StageUpsert   = "upsert"
	StageProvince = "province"
	StageDeadline = "deadline"
)
