package repository

import (
	"go-medical-chat-booking/internal/domain/entity"

	"gorm.io/gorm"
)

// AppointmentFilter narrows FindAll; empty fields match everything
type AppointmentFilter struct {
	DoctorName string
	Status     entity.AppointmentStatus
}

type AppointmentRepository interface {
	Create(db *gorm.DB, appointment *entity.Appointment) error
	FindByID(db *gorm.DB, id int64) (*entity.Appointment, error)
	FindScheduledBySlot(db *gorm.DB, doctorName, appointmentDate string) (*entity.Appointment, error)
	FindAll(db *gorm.DB, filter AppointmentFilter) ([]entity.Appointment, error)
	CancelScheduled(db *gorm.DB, id int64) (int64, error)
}
