package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/internal/domain/repository"
	"go-medical-chat-booking/internal/observability/metrics"
	"go-medical-chat-booking/internal/service"
	"go-medical-chat-booking/pkg/validator"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Ledger operation names reported in metrics
const (
	ledgerOpSchedule = "schedule"
	ledgerOpCancel   = "cancel"
)

// SlotRequest carries an extracted doctor/date/time triple into the ledger.
type SlotRequest struct {
	DoctorName string `validate:"required,max=255"`
	Date       string `validate:"required,len=10,datetime=2006-01-02"`
	Time       string `validate:"required,len=5,datetime=15:04"`
}

// slotField maps SlotRequest struct fields to the names callers see
var slotField = map[string]string{
	"DoctorName": SlotFieldDoctor,
	"Date":       SlotFieldDate,
	"Time":       SlotFieldTime,
}

type AppointmentLedgerUsecase interface {
	Schedule(ctx context.Context, session entity.Session, req SlotRequest) (*entity.Appointment, error)
	Cancel(ctx context.Context, session entity.Session, req SlotRequest) (*entity.Appointment, error)
}

type appointmentLedgerUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	validate        *validator.CustomValidator
	appointmentRepo repository.AppointmentRepository
	locker          service.SlotLocker
	auditService    service.AuditService
	metrics         *metrics.ChatMetrics
}

func NewAppointmentLedgerUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	validate *validator.CustomValidator,
	appointmentRepo repository.AppointmentRepository,
	locker service.SlotLocker,
	auditService service.AuditService,
	chatMetrics *metrics.ChatMetrics,
) AppointmentLedgerUsecase {
	return &appointmentLedgerUsecase{
		db:              db,
		log:             log,
		validate:        validate,
		appointmentRepo: appointmentRepo,
		locker:          locker,
		auditService:    auditService,
		metrics:         chatMetrics,
	}
}

// Schedule books the slot for the session's patient.
//
// Flow:
// 1. Validate and canonicalize doctor/date/time
// 2. Acquire the slot lock (doctor + slot)
// 3. Inside a transaction, re-check for a Scheduled row and insert
// 4. A unique-index violation is reported as a conflict as well
func (u *appointmentLedgerUsecase) Schedule(ctx context.Context, session entity.Session, req SlotRequest) (*entity.Appointment, error) {
	doctorName, slot, err := u.normalizeSlot(req)
	if err != nil {
		u.metrics.ObserveLedger(ledgerOpSchedule, "malformed")
		return nil, err
	}

	unlock, err := u.locker.Lock(ctx, entity.SlotKey(doctorName, slot))
	if err != nil {
		u.log.Warnf("Failed to lock slot %s for Dr. %s: %+v", slot, doctorName, err)
		u.metrics.ObserveLedger(ledgerOpSchedule, "error")
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	defer unlock()

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		u.metrics.ObserveLedger(ledgerOpSchedule, "error")
		return nil, tx.Error
	}
	defer tx.Rollback()

	existing, err := u.appointmentRepo.FindScheduledBySlot(tx, doctorName, slot)
	if err != nil {
		u.log.Warnf("Failed to check slot %s for Dr. %s: %+v", slot, doctorName, err)
		u.metrics.ObserveLedger(ledgerOpSchedule, "error")
		return nil, err
	}
	if existing != nil {
		u.metrics.ObserveLedger(ledgerOpSchedule, "conflict")
		return nil, ErrSlotConflict
	}

	appointment := &entity.Appointment{
		PatientName:     session.PatientName,
		DoctorName:      doctorName,
		AppointmentDate: slot,
		Status:          entity.AppointmentStatusScheduled,
	}
	if err := u.appointmentRepo.Create(tx, appointment); err != nil {
		if isDuplicateKey(err) {
			u.metrics.ObserveLedger(ledgerOpSchedule, "conflict")
			return nil, ErrSlotConflict
		}
		u.log.Warnf("Failed to create appointment: %+v", err)
		u.metrics.ObserveLedger(ledgerOpSchedule, "error")
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		if isDuplicateKey(err) {
			u.metrics.ObserveLedger(ledgerOpSchedule, "conflict")
			return nil, ErrSlotConflict
		}
		u.log.Warnf("Failed to commit appointment: %+v", err)
		u.metrics.ObserveLedger(ledgerOpSchedule, "error")
		return nil, err
	}

	u.auditService.LogCreate(ctx, session.ID, entity.AuditActionAppointmentSchedule, "appointment", appointment.ID, appointment)
	u.metrics.ObserveLedger(ledgerOpSchedule, "ok")
	u.log.Infof("Appointment %d scheduled with Dr. %s at %s", appointment.ID, doctorName, slot)

	return appointment, nil
}

// Cancel flips the Scheduled appointment at the slot to Cancelled. Which
// patient booked it is not checked.
func (u *appointmentLedgerUsecase) Cancel(ctx context.Context, session entity.Session, req SlotRequest) (*entity.Appointment, error) {
	doctorName, slot, err := u.normalizeSlot(req)
	if err != nil {
		u.metrics.ObserveLedger(ledgerOpCancel, "malformed")
		return nil, err
	}

	unlock, err := u.locker.Lock(ctx, entity.SlotKey(doctorName, slot))
	if err != nil {
		u.log.Warnf("Failed to lock slot %s for Dr. %s: %+v", slot, doctorName, err)
		u.metrics.ObserveLedger(ledgerOpCancel, "error")
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	defer unlock()

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		u.metrics.ObserveLedger(ledgerOpCancel, "error")
		return nil, tx.Error
	}
	defer tx.Rollback()

	appointment, err := u.appointmentRepo.FindScheduledBySlot(tx, doctorName, slot)
	if err != nil {
		u.log.Warnf("Failed to find appointment at %s for Dr. %s: %+v", slot, doctorName, err)
		u.metrics.ObserveLedger(ledgerOpCancel, "error")
		return nil, err
	}
	if appointment == nil {
		u.metrics.ObserveLedger(ledgerOpCancel, "not_found")
		return nil, ErrNoMatchingAppointment
	}

	affected, err := u.appointmentRepo.CancelScheduled(tx, appointment.ID)
	if err != nil {
		u.log.Warnf("Failed to cancel appointment %d: %+v", appointment.ID, err)
		u.metrics.ObserveLedger(ledgerOpCancel, "error")
		return nil, err
	}
	if affected == 0 {
		u.metrics.ObserveLedger(ledgerOpCancel, "not_found")
		return nil, ErrNoMatchingAppointment
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed to commit cancellation of appointment %d: %+v", appointment.ID, err)
		u.metrics.ObserveLedger(ledgerOpCancel, "error")
		return nil, err
	}

	oldStatus := appointment.Status
	appointment.Cancel()

	u.auditService.LogUpdate(ctx, session.ID, entity.AuditActionAppointmentCancel, "appointment", appointment.ID,
		map[string]interface{}{"status": oldStatus},
		map[string]interface{}{"status": appointment.Status},
	)
	u.metrics.ObserveLedger(ledgerOpCancel, "ok")
	u.log.Infof("Appointment %d with Dr. %s at %s cancelled", appointment.ID, doctorName, slot)

	return appointment, nil
}

// normalizeSlot returns the canonical doctor name and the "YYYY-MM-DD HH:MM"
// slot, or a *MalformedSlotError for the first field that fails.
func (u *appointmentLedgerUsecase) normalizeSlot(req SlotRequest) (string, string, error) {
	normalized := SlotRequest{
		DoctorName: entity.CanonicalDoctorName(req.DoctorName),
		Date:       strings.TrimSpace(req.Date),
		Time:       strings.TrimSpace(req.Time),
	}

	if err := u.validate.Validate(normalized); err != nil {
		fieldErrs := validator.FieldErrors(err)
		if len(fieldErrs) == 0 {
			return "", "", err
		}
		first := fieldErrs[0]
		return "", "", &MalformedSlotError{
			Field: slotField[first.StructField()],
			Value: fmt.Sprint(first.Value()),
		}
	}

	return normalized.DoctorName, normalized.Date + " " + normalized.Time, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
