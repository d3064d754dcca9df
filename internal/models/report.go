package models

// UsageReport is one row of the usage report shown to workers and clients.
type UsageReport struct {
	EventID   int64  `json:"-"`
	Event     string `json:"event"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}
