package usecase

import (
	"io"
	"testing"

	"go-medical-chat-booking/config"
	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/internal/infrastructure/database"
	"go-medical-chat-booking/internal/repository"
	"go-medical-chat-booking/internal/service"
	"go-medical-chat-booking/pkg/validator"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLiteConnection(config.DBConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestLedger(t *testing.T, db *gorm.DB) AppointmentLedgerUsecase {
	t.Helper()

	log := newTestLogger()
	locker := service.NewLocalSlotLocker(log)
	t.Cleanup(locker.Stop)

	return NewAppointmentLedgerUsecase(
		db,
		log,
		validator.NewValidator(),
		repository.NewAppointmentRepository(),
		locker,
		service.NewAuditService(log),
		nil,
	)
}

func newTestSessionLocker(t *testing.T) service.SlotLocker {
	t.Helper()

	locker := service.NewLocalSlotLocker(newTestLogger())
	t.Cleanup(locker.Stop)
	return locker
}

func scheduledRows(t *testing.T, db *gorm.DB, doctor, slot string) []entity.Appointment {
	t.Helper()

	var rows []entity.Appointment
	err := db.Where("doctor_name = ? AND appointment_date = ? AND status = ?", doctor, slot, entity.AppointmentStatusScheduled).
		Find(&rows).Error
	require.NoError(t, err)
	return rows
}

var testSession = entity.Session{ID: "session-1", PatientName: "Alice"}
