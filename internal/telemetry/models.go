// Package telemetry defines the passkey lifecycle event model shared by the
// recording pipeline, the stores, and the retention reaper.
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies passkey events by the lifecycle phase they belong to.
// Registration and authentication events carry their own enable flags in the
// operator settings; adoption events (nudges, fallbacks) are gated only by
// the global switch.
type Category string

const (
	CategoryRegistration   Category = "registration"
	CategoryAuthentication Category = "authentication"
	CategoryAdoption       Category = "adoption"
)

// EventKind identifies one passkey lifecycle occurrence.
type EventKind string

const (
	KindRegistrationAttempt   EventKind = "passkey_registration_attempt"
	KindRegistrationSuccess   EventKind = "passkey_registration_success"
	KindRegistrationFailure   EventKind = "passkey_registration_failure"
	KindAuthenticationAttempt EventKind = "passkey_authentication_attempt"
	KindAuthenticationSuccess EventKind = "passkey_authentication_success"
	KindAuthenticationFailure EventKind = "passkey_authentication_failure"
	KindNudgeShown            EventKind = "passkey_nudge_shown"
	KindNudgeAccepted         EventKind = "passkey_nudge_accepted"
	KindNudgeDeclined         EventKind = "passkey_nudge_declined"
	KindFallback              EventKind = "passkey_fallback"
)

var kindCategories = map[EventKind]Category{
	KindRegistrationAttempt:   CategoryRegistration,
	KindRegistrationSuccess:   CategoryRegistration,
	KindRegistrationFailure:   CategoryRegistration,
	KindAuthenticationAttempt: CategoryAuthentication,
	KindAuthenticationSuccess: CategoryAuthentication,
	KindAuthenticationFailure: CategoryAuthentication,
	KindNudgeShown:            CategoryAdoption,
	KindNudgeAccepted:         CategoryAdoption,
	KindNudgeDeclined:         CategoryAdoption,
	KindFallback:              CategoryAdoption,
}

// Valid reports whether k is one of the known lifecycle kinds.
func (k EventKind) Valid() bool {
	_, ok := kindCategories[k]
	return ok
}

// Category returns the lifecycle category for this kind.
// Unknown kinds default to CategoryAdoption; Submit rejects them before the
// category is ever consulted.
func (k EventKind) Category() Category {
	if cat, ok := kindCategories[k]; ok {
		return cat
	}
	return CategoryAdoption
}

// Attribute keys form a closed, versioned vocabulary. Kind-specific context
// travels in Event.Attributes under these keys only.
const (
	AttrDeviceInfo     = "deviceInfo"
	AttrErrorReason    = "errorReason"
	AttrErrorCategory  = "errorCategory"
	AttrFallbackMethod = "fallbackMethod"
	AttrFallbackReason = "fallbackReason"
	AttrNudgeContext   = "nudgeContext"
)

// Event is an immutable record of one passkey lifecycle occurrence. It is
// emitted from the authentication/registration flow and never mutated after
// construction; the policy gate returns enriched copies.
type Event struct {
	ID             uuid.UUID
	Kind           EventKind
	SubjectID      string
	Outcome        bool
	DurationMillis int64
	Attributes     map[string]string
	OccurredAt     time.Time
	NodeID         string
}

// WithAttributes returns a copy of the event carrying the given attribute map.
// The map is copied so the original event stays immutable.
func (e Event) WithAttributes(attrs map[string]string) Event {
	clone := e
	clone.Attributes = make(map[string]string, len(attrs))
	for k, v := range attrs {
		clone.Attributes[k] = v
	}
	return clone
}

func newEvent(kind EventKind, subjectID string, outcome bool, durationMillis int64, attrs map[string]string) Event {
	if durationMillis < 0 {
		durationMillis = 0
	}
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v != "" {
			copied[k] = v
		}
	}
	return Event{
		ID:             uuid.New(),
		Kind:           kind,
		SubjectID:      subjectID,
		Outcome:        outcome,
		DurationMillis: durationMillis,
		Attributes:     copied,
		OccurredAt:     time.Now(),
	}
}

// NewRegistrationAttempt records the start of a passkey registration ceremony.
// Duration is zero: the ceremony has not completed yet.
func NewRegistrationAttempt(subjectID, deviceInfo string) Event {
	return newEvent(KindRegistrationAttempt, subjectID, true, 0, map[string]string{
		AttrDeviceInfo: deviceInfo,
	})
}

// NewRegistrationSuccess records a completed passkey registration.
func NewRegistrationSuccess(subjectID, deviceInfo string, durationMillis int64) Event {
	return newEvent(KindRegistrationSuccess, subjectID, true, durationMillis, map[string]string{
		AttrDeviceInfo: deviceInfo,
	})
}

// NewRegistrationFailure records a failed passkey registration with the
// reason reported by the ceremony.
func NewRegistrationFailure(subjectID, deviceInfo, errorReason string, durationMillis int64) Event {
	return newEvent(KindRegistrationFailure, subjectID, false, durationMillis, map[string]string{
		AttrDeviceInfo:  deviceInfo,
		AttrErrorReason: errorReason,
	})
}

// NewAuthenticationAttempt records the start of a passkey assertion ceremony.
func NewAuthenticationAttempt(subjectID, deviceInfo string) Event {
	return newEvent(KindAuthenticationAttempt, subjectID, true, 0, map[string]string{
		AttrDeviceInfo: deviceInfo,
	})
}

// NewAuthenticationSuccess records a completed passkey authentication.
func NewAuthenticationSuccess(subjectID, deviceInfo string, durationMillis int64) Event {
	return newEvent(KindAuthenticationSuccess, subjectID, true, durationMillis, map[string]string{
		AttrDeviceInfo: deviceInfo,
	})
}

// NewAuthenticationFailure records a failed passkey authentication.
func NewAuthenticationFailure(subjectID, deviceInfo, errorReason string, durationMillis int64) Event {
	return newEvent(KindAuthenticationFailure, subjectID, false, durationMillis, map[string]string{
		AttrDeviceInfo:  deviceInfo,
		AttrErrorReason: errorReason,
	})
}

// NewNudgeShown records that a passkey adoption prompt was displayed.
func NewNudgeShown(subjectID, nudgeContext string) Event {
	return newEvent(KindNudgeShown, subjectID, true, 0, map[string]string{
		AttrNudgeContext: nudgeContext,
	})
}

// NewNudgeAccepted records that the user accepted a passkey adoption prompt.
func NewNudgeAccepted(subjectID, nudgeContext string) Event {
	return newEvent(KindNudgeAccepted, subjectID, true, 0, map[string]string{
		AttrNudgeContext: nudgeContext,
	})
}

// NewNudgeDeclined records that the user declined a passkey adoption prompt.
// Declines carry outcome=false by convention.
func NewNudgeDeclined(subjectID, nudgeContext string) Event {
	return newEvent(KindNudgeDeclined, subjectID, false, 0, map[string]string{
		AttrNudgeContext: nudgeContext,
	})
}

// NewFallback records a reversion to a non-passkey authentication method.
func NewFallback(subjectID, fallbackMethod, reason string) Event {
	return newEvent(KindFallback, subjectID, false, 0, map[string]string{
		AttrFallbackMethod: fallbackMethod,
		AttrFallbackReason: reason,
	})
}
