package domain

// RunStatus tells the caller how much to trust a run's output.
type RunStatus string

const (
	RunComplete  RunStatus = "complete"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Summary is the orchestrator's final accounting for one run.
type Summary struct {
	PagesFetched   int       `json:"pages_fetched"`
	PagesFailed    int       `json:"pages_failed"`
	RecordsYielded int       `json:"records_yielded"`
	Status         RunStatus `json:"status"`
	Reason         string    `json:"reason,omitempty"`
}

// NormalizationStats counts what the normalizer did with the raw stream.
type NormalizationStats struct {
	Emitted int                `json:"emitted"`
	Dropped map[DropReason]int `json:"dropped,omitempty"`
}

// Report combines orchestration and normalization accounting for a run.
type Report struct {
	Summary       Summary            `json:"summary"`
	Normalization NormalizationStats `json:"normalization"`
}
