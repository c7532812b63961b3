package model

// ComparisonRecord pairs a golden step with the test run's result for it.
type ComparisonRecord struct {
	Timestamp      *float64 `json:"timestamp,omitempty"`
	Expected       string   `json:"expected"`
	Status         Status   `json:"status"`
	Note           string   `json:"note,omitempty"`
	EvidenceFrame  string   `json:"evidence_frame,omitempty"`
	ReferenceFrame string   `json:"reference_frame,omitempty"`
	Index          int      `json:"index"`
}
