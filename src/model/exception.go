package model

import "time"

// Exception is a recovered panic or unexpected failure kept for later inspection.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "dailybuy"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "handler"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "DailyBuyHandler"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	// Request context as JSON, credentials stripped
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
