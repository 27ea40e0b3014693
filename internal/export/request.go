package export

import (
	"context"
	"fmt"
	"strings"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

// DefaultColumns are exported when a request names none.
var DefaultColumns = []string{
	v1.FieldID,
	v1.FieldOrgID,
	v1.FieldUserID,
	v1.FieldDeviceID,
	v1.FieldMetricCategoryCode,
	v1.FieldMetricTypeCode,
	v1.FieldMetricTypeVersion,
	v1.FieldValue,
	v1.FieldTakenAt,
	v1.FieldTakenAtOffset,
	v1.FieldRecordedAt,
	v1.FieldMetadata,
}

var exportableColumns = func() map[string]bool {
	cols := make(map[string]bool, len(v1.StoredFields)+2)
	for _, f := range v1.StoredFields {
		cols[f] = true
	}
	cols[v1.FieldMetricTypeCode] = true
	cols[v1.FieldMetricCategoryCode] = true
	return cols
}()

// Requester identifies who asked for an export.
type Requester struct {
	UserID string
	OrgID  string
	Email  string
	Locale string
}

// JobMessage is the queued export job.
type JobMessage struct {
	Params  v1.SearchFilters `json:"params"`
	Columns []string         `json:"columns"`
	Email   string           `json:"email"`
	Locale  string           `json:"locale,omitempty"`
}

// EmailLookup resolves a user's delivery address.
type EmailLookup interface {
	LookupEmail(ctx context.Context, userID string) (string, error)
}

// StaticEmailLookup is a fixed user id -> email table.
type StaticEmailLookup map[string]string

func (s StaticEmailLookup) LookupEmail(_ context.Context, userID string) (string, error) {
	email, ok := s[userID]
	if !ok {
		return "", fmt.Errorf("no email for user %q", userID)
	}
	return email, nil
}

// ValidateColumns accepts stored fields, the two code columns and
// metadata.<key> columns. Duplicates are rejected.
func ValidateColumns(columns []string) error {
	seen := make(map[string]bool, len(columns))
	for i, column := range columns {
		field := fmt.Sprintf("columns[%d]", i)
		if seen[column] {
			return v1.NewValidationError(field, fmt.Sprintf("duplicate column %q", column))
		}
		seen[column] = true
		if exportableColumns[column] {
			continue
		}
		if key, ok := strings.CutPrefix(column, v1.MetadataFieldPrefix); ok && strings.TrimSpace(key) != "" {
			continue
		}
		return v1.NewValidationError(field, fmt.Sprintf("unknown column %q", column))
	}
	return nil
}

// Request validates an export request and builds the job message. Paging
// fields are dropped because the export scan owns paging.
func (e *Engine) Request(ctx context.Context, filters v1.SearchFilters, columns []string, requester Requester) (*JobMessage, error) {
	if filters.OrgID == "" {
		filters.OrgID = requester.OrgID
	}
	if requester.OrgID != "" && filters.OrgID != requester.OrgID {
		return nil, v1.NewValidationError("orgId", "orgId does not match the requester")
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		columns = append([]string(nil), DefaultColumns...)
	}
	if err := ValidateColumns(columns); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(requester.Email)
	if email == "" {
		if e.emails == nil || requester.UserID == "" {
			return nil, v1.NewValidationError("email", "requester email is required")
		}
		found, err := e.emails.LookupEmail(ctx, requester.UserID)
		if err != nil {
			return nil, newServerError(StepEmailLookup, err)
		}
		email = strings.TrimSpace(found)
		if email == "" {
			return nil, newServerError(StepEmailLookup, fmt.Errorf("user %q has no email", requester.UserID))
		}
	}

	filters.Limit = 0
	filters.Offset = 0
	filters.NextToken = ""
	filters.Sort = nil
	filters.IncludeTotal = false

	return &JobMessage{
		Params:  filters,
		Columns: columns,
		Email:   email,
		Locale:  requester.Locale,
	}, nil
}
