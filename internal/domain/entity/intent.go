package entity

// IntentKind discriminates the BookingIntent variants
type IntentKind int

const (
	IntentUnparseable IntentKind = iota
	IntentClarification
	IntentAction
)

func (k IntentKind) String() string {
	switch k {
	case IntentClarification:
		return "clarification"
	case IntentAction:
		return "action"
	default:
		return "unparseable"
	}
}

// BookingIntent is what the extractor recovers from a provider reply.
// DoctorName, Date and Time are set for IntentAction; PromptText for
// IntentClarification.
type BookingIntent struct {
	Kind       IntentKind
	DoctorName string
	Date       string
	Time       string
	PromptText string
}

func NewActionIntent(doctorName, date, time string) BookingIntent {
	return BookingIntent{Kind: IntentAction, DoctorName: doctorName, Date: date, Time: time}
}

func NewClarificationIntent(prompt string) BookingIntent {
	return BookingIntent{Kind: IntentClarification, PromptText: prompt}
}

func UnparseableIntent() BookingIntent {
	return BookingIntent{Kind: IntentUnparseable}
}
