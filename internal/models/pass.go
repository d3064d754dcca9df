package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Pass struct {
	bun.BaseModel `bun:"table:passes"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID   int64     `bun:"event_id,notnull" json:"event_id"`
	Code      string    `bun:"code,unique,notnull" json:"code"`
	UsedCount int       `bun:"used_count,notnull,default:0" json:"used_count"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
