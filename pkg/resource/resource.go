// Package resource defines the inventory model shared by collectors and emitters.
package resource

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// recordJSON decodes numbers as json.Number so 64-bit counters keep every digit.
var recordJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Record is one provider resource as returned by the API.
// Keys are the API field names; values are never interpreted by the collectors.
type Record map[string]any

// CallError is the structured form of a provider-reported fault.
type CallError struct {
	Detail  string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CallError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCallError builds a CallError from an arbitrary error.
// Used for faults that carry no provider code.
func NewCallError(code string, err error) *CallError {
	return &CallError{Detail: err.Error(), Code: code, Message: err.Error()}
}

// ItemError records a failure describing one named item of a category.
type ItemError struct {
	Name string `json:"name"`
	CallError
}

// CallerIdentity is the authenticated principal a run executes as.
type CallerIdentity struct {
	UserID  string `json:"UserId"`
	Account string `json:"Account"`
	Arn     string `json:"Arn"`
}

// RunInfo is caller-supplied metadata attached to a snapshot.
type RunInfo struct {
	RunID           string         `json:"run_id"`
	TimestampUTC    string         `json:"timestamp_utc"`
	Regions         []string       `json:"regions"`
	AccountName     string         `json:"account_name"`
	AccountIDEnv    string         `json:"account_id_env"`
	STSIdentity     CallerIdentity `json:"sts_identity"`
	DurationSeconds float64        `json:"duration_seconds"`
}

// Snapshot is the merged result of one orchestration pass.
type Snapshot struct {
	Regions []string       `json:"regions"`
	Global  GlobalRecord   `json:"global"`
	Items   []RegionRecord `json:"items"`
}

// Inventory is a snapshot plus its run metadata, as written to disk.
type Inventory struct {
	*Snapshot
	RunInfo RunInfo `json:"run_info"`
}

// FromValues converts typed SDK values into opaque records. Fields the API
// left unset are omitted rather than stored as null.
func FromValues[T any](values []T) ([]Record, error) {
	if len(values) == 0 {
		return []Record{}, nil
	}
	data, err := recordJSON.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", values, err)
	}
	out := make([]Record, 0, len(values))
	if err := recordJSON.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	for _, r := range out {
		dropNulls(map[string]any(r))
	}
	return out, nil
}

// dropNulls removes nil map entries at every depth.
func dropNulls(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if child == nil {
				delete(t, k)
				continue
			}
			dropNulls(child)
		}
	case []any:
		for _, child := range t {
			dropNulls(child)
		}
	}
}

// Counts returns the number of records per region category across all regions.
func (s *Snapshot) Counts() map[Category]int {
	counts := make(map[Category]int, len(RegionCategories))
	for _, c := range RegionCategories {
		counts[c] = 0
	}
	for _, item := range s.Items {
		for _, c := range RegionCategories {
			counts[c] += len(item.Resources[c])
		}
	}
	return counts
}

// ErrorCount returns the number of failed categories, failed items and
// substituted records in the snapshot.
func (s *Snapshot) ErrorCount() int {
	n := len(s.Global.Errors)
	if s.Global.Failure != nil {
		n++
	}
	for _, item := range s.Items {
		n += len(item.Errors) + len(item.DescribeErrors)
		if item.Failure != nil {
			n++
		}
	}
	return n
}
