package database

import (
	"fmt"

	"go-medical-chat-booking/internal/domain/entity"

	"gorm.io/gorm"
)

// Migrate creates the appointments table and its partial unique index on
// (doctor_name, appointment_date) for Scheduled rows.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&entity.Appointment{}); err != nil {
		return fmt.Errorf("failed to migrate appointments: %w", err)
	}
	return nil
}
