package entity

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AppointmentStatus represents the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "Scheduled"
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
	AppointmentStatusCompleted AppointmentStatus = "Completed"
)

// SlotLayout is the canonical format of Appointment.AppointmentDate
const SlotLayout = "2006-01-02 15:04"

// Appointment is a booked (or formerly booked) doctor slot.
//
// At most one row per (doctor_name, appointment_date) may be Scheduled; the
// partial unique index backs the ledger's locking.
type Appointment struct {
	ID              int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	PatientName     string            `gorm:"type:varchar(255);not null" json:"patient_name"`
	DoctorName      string            `gorm:"type:varchar(255);not null;uniqueIndex:uniq_scheduled_slot,priority:1,where:status = 'Scheduled'" json:"doctor_name"`
	AppointmentDate string            `gorm:"type:varchar(16);not null;uniqueIndex:uniq_scheduled_slot,priority:2,where:status = 'Scheduled'" json:"appointment_date"`
	Status          AppointmentStatus `gorm:"type:varchar(20);not null;default:'Scheduled';index" json:"status"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// IsScheduled checks if the appointment still holds its slot
func (a *Appointment) IsScheduled() bool {
	return a.Status == AppointmentStatusScheduled
}

// IsCancelled checks if the appointment was cancelled
func (a *Appointment) IsCancelled() bool {
	return a.Status == AppointmentStatusCancelled
}

// Cancel changes appointment status to cancelled
func (a *Appointment) Cancel() {
	a.Status = AppointmentStatusCancelled
}

// Date returns the date part of AppointmentDate.
func (a *Appointment) Date() string {
	date, _, _ := strings.Cut(a.AppointmentDate, " ")
	return date
}

// Time returns the time part of AppointmentDate.
func (a *Appointment) Time() string {
	_, clock, _ := strings.Cut(a.AppointmentDate, " ")
	return clock
}

// ValidAppointmentStatus reports whether s names a known status
func ValidAppointmentStatus(s string) bool {
	switch AppointmentStatus(s) {
	case AppointmentStatusScheduled, AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

// doctorTitle matches a leading "Dr", "Dr." or "Dr.Name" title
var doctorTitle = regexp.MustCompile(`(?i)^dr(\.\s*|\s+|$)`)

// CanonicalDoctorName trims, collapses whitespace, drops a leading "Dr." title
// and folds case, so "Dr. Smith", "Dr.Smith", "DR. SMITH" and "Smith" all
// address the same slot. A bare title yields "".
func CanonicalDoctorName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	name = strings.TrimSpace(doctorTitle.ReplaceAllString(name, ""))
	// Casers are stateful and must not be shared between goroutines
	return cases.Title(language.Und).String(name)
}

// SlotKey is the serialization key for a doctor's slot
func SlotKey(doctorName, appointmentDate string) string {
	return doctorName + "|" + appointmentDate
}
