// Package notifications persists notification rows for report owners and
// administrators. Delivery transports (email, SMS, push) consume these rows
// elsewhere; this package is only the dispatch contract.
package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/reunite-app/api-go/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Dispatcher struct {
	DB *gorm.DB
}

func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{DB: db}
}

// Notify stores one notification. A nil recipientID creates an admin
// broadcast. Callers in the matching pipeline treat this as fire-and-forget
// and only log the returned error.
func (d *Dispatcher) Notify(recipientID *uint, title, message, notifType string, data map[string]interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}

	notification := models.Notification{
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Type:        notifType,
		Data:        datatypes.JSON(payload),
	}
	if err := d.DB.Create(&notification).Error; err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	return nil
}
