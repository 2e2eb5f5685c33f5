package models

import (
	"time"

	"github.com/google/uuid"
)

// Tournament владеет упорядоченной по дате старта последовательностью стадий.
type Tournament struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	CategoryID uuid.UUID `json:"category_id" db:"category_id"` // категория рейтинга игроков
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	Stages []Stage `json:"stages,omitempty" db:"-"`
}
