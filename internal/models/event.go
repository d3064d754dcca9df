package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event owns a batch of passes and defines how often each of them may be used.
// QRWidth and QRHeight are the printed cell size in centimetres.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Date        string    `bun:"date,notnull" json:"date"`
	Sponsors    string    `bun:"sponsors" json:"sponsors"`
	TotalPasses int       `bun:"total_passes,notnull" json:"total_passes"`
	MaxUses     int       `bun:"max_uses,notnull" json:"max_uses"`
	QRWidth     float64   `bun:"qr_width,notnull" json:"qr_width"`
	QRHeight    float64   `bun:"qr_height,notnull" json:"qr_height"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// RemainingUses is the event capacity, total_passes*max_uses, minus the uses
// already consumed. Passes that were never generated still count as capacity.
func RemainingUses(totalPasses, maxUses, used int) int {
	return totalPasses*maxUses - used
}
