package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalDoctorName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith", "Smith"},
		{"Dr. Smith", "Smith"},
		{"dr  Smith", "Smith"},
		{"Dr.Smith", "Smith"},
		{"DR. SMITH", "Smith"},
		{"smith", "Smith"},
		{"  Dr.   John   Smith ", "John Smith"},
		{"Drake", "Drake"},
		{"Dr.", ""},
		{"Dr", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalDoctorName(tt.in))
		})
	}
}

func TestAppointment_DateAndTime(t *testing.T) {
	a := &Appointment{AppointmentDate: "2025-03-10 14:00", Status: AppointmentStatusScheduled}
	assert.Equal(t, "2025-03-10", a.Date())
	assert.Equal(t, "14:00", a.Time())
	assert.True(t, a.IsScheduled())

	a.Cancel()
	assert.True(t, a.IsCancelled())
}
