package usecase

import (
	"context"
	"fmt"

	"go-medical-chat-booking/internal/converter"
	"go-medical-chat-booking/internal/delivery/dto"
	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/internal/domain/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AppointmentUsecase is the read side of the ledger.
type AppointmentUsecase interface {
	ListAppointments(ctx context.Context, req *dto.AppointmentListRequest) (*dto.AppointmentListResponse, error)
}

type appointmentUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
}

func NewAppointmentUsecase(db *gorm.DB, log *logrus.Logger, appointmentRepo repository.AppointmentRepository) AppointmentUsecase {
	return &appointmentUsecase{
		db:              db,
		log:             log,
		appointmentRepo: appointmentRepo,
	}
}

// ListAppointments returns appointments ordered by id, optionally narrowed by
// doctor (canonicalized like the ledger does) and status.
func (u *appointmentUsecase) ListAppointments(ctx context.Context, req *dto.AppointmentListRequest) (*dto.AppointmentListResponse, error) {
	filter := repository.AppointmentFilter{}
	if req != nil {
		if req.Status != "" && !entity.ValidAppointmentStatus(req.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidAppointmentFilter, req.Status)
		}
		filter.DoctorName = entity.CanonicalDoctorName(req.Doctor)
		filter.Status = entity.AppointmentStatus(req.Status)
	}

	appointments, err := u.appointmentRepo.FindAll(u.db.WithContext(ctx), filter)
	if err != nil {
		u.log.Warnf("Failed to list appointments: %+v", err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}
