// Package policy decides, per event, whether and how the pipeline records it.
// Both functions are pure and cheap enough to run unconditionally on the
// producer path.
package policy

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"

	"fidotel/internal/telemetry"
	"fidotel/internal/telemetry/settings"
)

// ShouldRecord reports whether an event of the given kind is recorded under
// the current settings. Registration and authentication kinds carry their own
// flags; nudge and fallback kinds follow the global switch only.
func ShouldRecord(kind telemetry.EventKind, snap settings.Snapshot) bool {
	if !snap.MetricsEnabled {
		return false
	}
	switch kind.Category() {
	case telemetry.CategoryRegistration:
		return snap.RegistrationEnabled
	case telemetry.CategoryAuthentication:
		return snap.AuthenticationEnabled
	default:
		return true
	}
}

// Enrich returns a copy of the event with its attributes adjusted to the
// current settings: device info is normalized or stripped, and error reasons
// are collapsed into the fixed category set when categorization is on.
func Enrich(event telemetry.Event, snap settings.Snapshot) telemetry.Event {
	attrs := make(map[string]string, len(event.Attributes))
	for k, v := range event.Attributes {
		attrs[k] = v
	}

	if raw, ok := attrs[telemetry.AttrDeviceInfo]; ok {
		if snap.DeviceInfoCollectionEnabled {
			attrs[telemetry.AttrDeviceInfo] = normalizeDeviceInfo(raw)
		} else {
			delete(attrs, telemetry.AttrDeviceInfo)
		}
	}

	if reason, ok := attrs[telemetry.AttrErrorReason]; ok && snap.ErrorCategorizationEnabled {
		attrs[telemetry.AttrErrorCategory] = CategorizeError(reason)
		delete(attrs, telemetry.AttrErrorReason)
	}

	return event.WithAttributes(attrs)
}

// normalizeDeviceInfo collapses a raw user-agent string into "Browser ver on
// OS". Strings that don't parse as a user agent are kept verbatim, trimmed.
func normalizeDeviceInfo(raw string) string {
	raw = strings.TrimSpace(raw)
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	if major, _, ok := strings.Cut(version, "."); ok {
		version = major
	}
	os := ua.OS()
	if os == "" {
		if version == "" {
			return name
		}
		return fmt.Sprintf("%s %s", name, version)
	}
	return fmt.Sprintf("%s %s on %s", name, version, os)
}

// Error categories form a fixed set so dashboards stay stable regardless of
// the free-text reasons ceremonies report.
const (
	ErrorCategoryTimeout           = "TIMEOUT"
	ErrorCategoryUserCancelled     = "USER_CANCELLED"
	ErrorCategoryInvalidCredential = "INVALID_CREDENTIAL"
	ErrorCategoryNetwork           = "NETWORK"
	ErrorCategoryNotAllowed        = "NOT_ALLOWED"
	ErrorCategoryAttestation       = "ATTESTATION"
	ErrorCategoryOther             = "OTHER"
)

var errorCategoryMatchers = []struct {
	substring string
	category  string
}{
	{"timeout", ErrorCategoryTimeout},
	{"timed out", ErrorCategoryTimeout},
	{"cancel", ErrorCategoryUserCancelled},
	{"abort", ErrorCategoryUserCancelled},
	{"credential", ErrorCategoryInvalidCredential},
	{"signature", ErrorCategoryInvalidCredential},
	{"counter", ErrorCategoryInvalidCredential},
	{"network", ErrorCategoryNetwork},
	{"unreachable", ErrorCategoryNetwork},
	{"connection", ErrorCategoryNetwork},
	{"notallowed", ErrorCategoryNotAllowed},
	{"not allowed", ErrorCategoryNotAllowed},
	{"attestation", ErrorCategoryAttestation},
}

// CategorizeError maps a free-text failure reason to its fixed category.
// Unrecognized reasons map to OTHER.
func CategorizeError(reason string) string {
	lowered := strings.ToLower(reason)
	for _, m := range errorCategoryMatchers {
		if strings.Contains(lowered, m.substring) {
			return m.category
		}
	}
	return ErrorCategoryOther
}
