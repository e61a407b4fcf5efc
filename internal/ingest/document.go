package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/festworks/festpass-backend/internal/portal"
	"github.com/festworks/festpass-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

const (
	maxMembershipLen = 120
	maxEventNameLen  = 200
	// MaxDocsPerRun bounds how many upstream documents one run will process;
	// the remainder stays upstream for a later run.
	MaxDocsPerRun = 200
)

// Rejection reasons surfaced in debug output and metrics labels.
const (
	rejectMissingTracking  = "missing_tracking_id"
	rejectMissingStatus    = "missing_status"
	rejectNotSuccess       = "status_not_success"
	rejectMembershipTooBig = "membership_too_long"
	rejectEventNameTooBig  = "event_name_too_long"
)

// trackingAliases, in priority order, are the field names upstream has used
// for the order/tracking identifier.
var trackingAliases = []string{"tracking_id", "order_id", "orderId", "txn_id"}

// categoryAliases, in priority order, are the field names upstream has used
// to declare the purchasing user's cohort.
var categoryAliases = []string{
	"user_category",
	"userCategory",
	"user_type",
	"userType",
	"category",
	"member_category",
	"audience",
}

var statusAliases = []string{"status", "order_status", "payment_status"}
var eventNameAliases = []string{"event_name", "eventName", "event"}
var eventTypeAliases = []string{"event_type", "eventType"}
var membershipAliases = []string{"membership", "membership_type", "membership_name", "item_name"}
var amountAliases = []string{"amount", "total_amount"}
var createdAtAliases = []string{"created_at", "createdAt", "payment_date"}

// NormalizedDoc is an upstream document that passed validation, with every
// field pinned to its canonical shape.
type NormalizedDoc struct {
	TrackingID        string
	Status            enums.PaymentStatus
	Membership        string
	EventName         string
	EventType         *string
	Amount            decimal.NullDecimal
	ExternalCreatedAt *time.Time
	UserCategory      *enums.PassCategory
	Raw               json.RawMessage
}

// NormalizeDocument validates one upstream document. The second return is a
// rejection reason; it is empty when the document is acceptable.
func NormalizeDocument(doc portal.Document) (*NormalizedDoc, string) {
	tracking := probeString(doc, trackingAliases)
	if tracking == "" {
		return nil, rejectMissingTracking
	}

	rawStatus := probeString(doc, statusAliases)
	if strings.TrimSpace(rawStatus) == "" {
		return nil, rejectMissingStatus
	}
	status, ok := enums.NormalizeSuccessStatus(rawStatus)
	if !ok {
		return nil, rejectNotSuccess
	}

	membership := strings.TrimSpace(probeString(doc, membershipAliases))
	if len(membership) > maxMembershipLen {
		return nil, rejectMembershipTooBig
	}
	eventName := strings.TrimSpace(probeString(doc, eventNameAliases))
	if len(eventName) > maxEventNameLen {
		return nil, rejectEventNameTooBig
	}

	normalized := &NormalizedDoc{
		TrackingID: tracking,
		Status:     status,
		Membership: membership,
		EventName:  eventName,
		Amount:     parseAmount(probeValue(doc, amountAliases)),
	}

	if eventType := probeString(doc, eventTypeAliases); eventType != "" {
		normalized.EventType = &eventType
	}
	if createdAt := parseTimestamp(probeValue(doc, createdAtAliases)); createdAt != nil {
		normalized.ExternalCreatedAt = createdAt
	}
	if category, found := ProbeUserCategory(doc); found {
		normalized.UserCategory = &category
	}

	if raw, err := json.Marshal(doc); err == nil {
		normalized.Raw = raw
	}
	return normalized, ""
}

// ProbeUserCategory checks the known category field spellings in priority
// order and returns the first label that normalizes to a known cohort.
func ProbeUserCategory(doc map[string]any) (enums.PassCategory, bool) {
	for _, alias := range categoryAliases {
		value, present := doc[alias]
		if !present {
			continue
		}
		if category, ok := enums.NormalizePassCategory(stringValue(value)); ok {
			return category, true
		}
	}
	return "", false
}

func probeString(doc portal.Document, aliases []string) string {
	return stringValue(probeValue(doc, aliases))
}

func probeValue(doc portal.Document, aliases []string) any {
	for _, alias := range aliases {
		if value, present := doc[alias]; present {
			if stringValue(value) != "" {
				return value
			}
		}
	}
	return nil
}

func stringValue(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

// parseAmount accepts numbers and numeric-looking strings, stripping currency
// symbols and separators. Unparsable input yields null rather than failing
// the document.
func parseAmount(v any) decimal.NullDecimal {
	switch value := v.(type) {
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(value))
	case json.Number:
		if d, err := decimal.NewFromString(value.String()); err == nil {
			return decimal.NewNullDecimal(d)
		}
	case string:
		cleaned := stripNonNumeric(value)
		if cleaned == "" {
			return decimal.NullDecimal{}
		}
		if d, err := decimal.NewFromString(cleaned); err == nil {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

func stripNonNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseTimestamp(v any) *time.Time {
	switch value := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				return &t
			}
		}
	case float64:
		t := time.Unix(int64(value), 0).UTC()
		return &t
	}
	return nil
}
