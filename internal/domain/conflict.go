package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	ConflictTypeProviderOverlap ConflictType = "provider_overlap"
	ConflictTypeClientOverlap   ConflictType = "client_overlap"
)

// ConflictRecord describes one overlap between a candidate occurrence
// and an existing, conflict-scoped appointment. An occurrence with any
// ConflictRecord is never silently accepted; acceptance policy belongs
// to the caller.
type ConflictRecord struct {
	ConflictingAppointmentID uuid.UUID    `json:"conflicting_appointment_id"`
	ConflictType             ConflictType `json:"conflict_type"`
	OverlapStart             time.Time    `json:"overlap_start"`
	OverlapEnd               time.Time    `json:"overlap_end"`
	Message                  string       `json:"message"`
}

// NewConflictRecord builds the record for an existing appointment that
// overlaps a candidate occurrence. Provider overlap takes precedence
// when the same appointment matches on both owners.
func NewConflictRecord(appt Appointment, occ Occurrence) ConflictRecord {
	window, _ := appt.Interval().Intersect(occ.Interval())

	kind := ConflictTypeClientOverlap
	message := "Client already has an appointment at this time"
	if appt.ProviderID == occ.ProviderID {
		kind = ConflictTypeProviderOverlap
		message = "Provider already has an appointment at this time"
	}

	return ConflictRecord{
		ConflictingAppointmentID: appt.ID,
		ConflictType:             kind,
		OverlapStart:             window.Start,
		OverlapEnd:               window.End,
		Message:                  message,
	}
}
