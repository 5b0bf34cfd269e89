package telemetry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKindValid(t *testing.T) {
	kinds := []EventKind{
		KindRegistrationAttempt, KindRegistrationSuccess, KindRegistrationFailure,
		KindAuthenticationAttempt, KindAuthenticationSuccess, KindAuthenticationFailure,
		KindNudgeShown, KindNudgeAccepted, KindNudgeDeclined,
		KindFallback,
	}
	for _, kind := range kinds {
		assert.True(t, kind.Valid(), string(kind))
	}

	assert.False(t, EventKind("").Valid())
	assert.False(t, EventKind("passkey_unknown").Valid())
	assert.False(t, EventKind("PASSKEY_REGISTRATION_ATTEMPT").Valid())
}

func TestEventKindCategory(t *testing.T) {
	tests := []struct {
		kind EventKind
		want Category
	}{
		{KindRegistrationAttempt, CategoryRegistration},
		{KindRegistrationSuccess, CategoryRegistration},
		{KindRegistrationFailure, CategoryRegistration},
		{KindAuthenticationAttempt, CategoryAuthentication},
		{KindAuthenticationSuccess, CategoryAuthentication},
		{KindAuthenticationFailure, CategoryAuthentication},
		{KindNudgeShown, CategoryAdoption},
		{KindNudgeAccepted, CategoryAdoption},
		{KindNudgeDeclined, CategoryAdoption},
		{KindFallback, CategoryAdoption},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.Category(), string(tt.kind))
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name        string
		event       Event
		wantKind    EventKind
		wantOutcome bool
		wantAttrs   map[string]string
	}{
		{
			name:        "registration attempt",
			event:       NewRegistrationAttempt("user-1", "Mozilla/5.0"),
			wantKind:    KindRegistrationAttempt,
			wantOutcome: true,
			wantAttrs:   map[string]string{AttrDeviceInfo: "Mozilla/5.0"},
		},
		{
			name:        "registration failure carries reason",
			event:       NewRegistrationFailure("user-1", "Mozilla/5.0", "ceremony timed out", 1200),
			wantKind:    KindRegistrationFailure,
			wantOutcome: false,
			wantAttrs:   map[string]string{AttrDeviceInfo: "Mozilla/5.0", AttrErrorReason: "ceremony timed out"},
		},
		{
			name:        "authentication success",
			event:       NewAuthenticationSuccess("user-2", "Mozilla/5.0", 80),
			wantKind:    KindAuthenticationSuccess,
			wantOutcome: true,
			wantAttrs:   map[string]string{AttrDeviceInfo: "Mozilla/5.0"},
		},
		{
			name:        "nudge declined is a negative outcome",
			event:       NewNudgeDeclined("user-3", "post-login"),
			wantKind:    KindNudgeDeclined,
			wantOutcome: false,
			wantAttrs:   map[string]string{AttrNudgeContext: "post-login"},
		},
		{
			name:        "fallback is a negative outcome",
			event:       NewFallback("user-4", "password", "authenticator unavailable"),
			wantKind:    KindFallback,
			wantOutcome: false,
			wantAttrs:   map[string]string{AttrFallbackMethod: "password", AttrFallbackReason: "authenticator unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.event.Kind)
			assert.Equal(t, tt.wantOutcome, tt.event.Outcome)
			assert.Equal(t, tt.wantAttrs, tt.event.Attributes)
			assert.NotEqual(t, uuid.Nil, tt.event.ID)
			assert.False(t, tt.event.OccurredAt.IsZero())
		})
	}
}

func TestConstructorSkipsEmptyAttributes(t *testing.T) {
	event := NewRegistrationAttempt("user-1", "")
	_, ok := event.Attributes[AttrDeviceInfo]
	assert.False(t, ok)
}

func TestConstructorClampsNegativeDuration(t *testing.T) {
	event := NewAuthenticationSuccess("user-1", "Mozilla/5.0", -50)
	assert.Equal(t, int64(0), event.DurationMillis)
}

func TestWithAttributesDoesNotMutateOriginal(t *testing.T) {
	original := NewRegistrationAttempt("user-1", "Mozilla/5.0")
	clone := original.WithAttributes(map[string]string{AttrDeviceInfo: "Firefox 120 on Linux"})

	require.Equal(t, "Mozilla/5.0", original.Attributes[AttrDeviceInfo])
	require.Equal(t, "Firefox 120 on Linux", clone.Attributes[AttrDeviceInfo])
	assert.Equal(t, original.ID, clone.ID)
	assert.Equal(t, original.Kind, clone.Kind)
}
