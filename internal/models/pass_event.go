package models

// PassesGeneratedEvent is published whenever passes are generated for an event.
type PassesGeneratedEvent struct {
	EventID   int64 `json:"event_id"`
	Requested int   `json:"requested"`
	Created   int   `json:"created"`
	Total     int   `json:"total"`
}

// PassRedeemedEvent is published for every allowed redemption.
type PassRedeemedEvent struct {
	EventID    int64  `json:"event_id"`
	Code       string `json:"code"`
	UsedCount  int    `json:"used_count"`
	Remaining  int    `json:"remaining"`
	RedeemedAt string `json:"redeemed_at"`
}
