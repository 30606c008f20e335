package dto

// Request DTOs

type AppointmentListRequest struct {
	Doctor string `json:"doctor" validate:"omitempty,max=255"`
	Status string `json:"status" validate:"omitempty,oneof=Scheduled Cancelled Completed"`
}

// Response DTOs

type AppointmentResponse struct {
	ID              int64  `json:"id"`
	PatientName     string `json:"patient_name"`
	DoctorName      string `json:"doctor_name"`
	AppointmentDate string `json:"appointment_date"`
	Status          string `json:"status"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}
