// Package model defines core data structures for proxydeck.
package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// DefaultCountryCode is the only country the provider usernames target.
const DefaultCountryCode = "us"

// Credentials holds the provider account used for every probe.
// Password never leaves the process through JSON.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Persist  bool   `json:"persist"`
}

// Complete reports whether both username and password are set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// String masks the password.
func (c Credentials) String() string {
	masked := ""
	if c.Password != "" {
		masked = "********"
	}
	return fmt.Sprintf("Credentials{Username: %q, Password: %q, Persist: %t}", c.Username, masked, c.Persist)
}

// ValidationError reports malformed user input caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AcquisitionRequest describes one batch of endpoints to acquire.
type AcquisitionRequest struct {
	BaseUsername           string `json:"base_username"`
	ZipCode                string `json:"zip_code,omitempty"`
	SessionDurationMinutes int    `json:"session_duration_minutes,omitempty"` // 0 = absent
	CountryCode            string `json:"country_code"`
	EndpointCount          int    `json:"endpoint_count"`
}

// SessionDurationChoices are the durations offered by the dashboard.
// Any positive value is still accepted.
var SessionDurationChoices = []int{1, 10, 30, 60}

// Validate checks the request. maxEndpoints <= 0 disables the upper bound.
func (r AcquisitionRequest) Validate(maxEndpoints int) error {
	if r.EndpointCount < 1 {
		return &ValidationError{Field: "endpoint_count", Message: "must be at least 1"}
	}
	if maxEndpoints > 0 && r.EndpointCount > maxEndpoints {
		return &ValidationError{Field: "endpoint_count", Message: fmt.Sprintf("must be at most %d", maxEndpoints)}
	}
	if r.ZipCode != "" && utf8.RuneCountInString(r.ZipCode) != 5 {
		return &ValidationError{Field: "zip_code", Message: "must be exactly 5 characters"}
	}
	if r.SessionDurationMinutes < 0 {
		return &ValidationError{Field: "session_duration_minutes", Message: "must be positive"}
	}
	return nil
}

// ProxyRecord is the identity observed through one proxy endpoint.
// Every field is optional; absent payload fields stay nil.
type ProxyRecord struct {
	IP         *string  `json:"ip"`
	ISP        *string  `json:"isp"`
	CityName   *string  `json:"city_name"`
	RegionCode *string  `json:"region_code"`
	RegionName *string  `json:"region_name"`
	Zip        *string  `json:"zip"`
	TimeZone   *string  `json:"time_zone"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// AcquisitionFailure records a probe that did not produce a record.
type AcquisitionFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// AcquisitionEntry is one slot of a batch. Exactly one of Record and Failure is set.
type AcquisitionEntry struct {
	Index   int                 `json:"index"`
	Record  *ProxyRecord        `json:"record,omitempty"`
	Failure *AcquisitionFailure `json:"failure,omitempty"`
}

// AcquisitionState is the lifecycle of a batch.
type AcquisitionState string

const (
	AcquisitionIdle                AcquisitionState = "idle"
	AcquisitionFetching            AcquisitionState = "fetching"
	AcquisitionCompleted           AcquisitionState = "completed"
	AcquisitionCompletedWithErrors AcquisitionState = "completed-with-errors"
)

// AcquisitionOutcome accumulates the entries and status log of one run.
type AcquisitionOutcome struct {
	RunID      string             `json:"run_id"`
	State      AcquisitionState   `json:"state"`
	Request    AcquisitionRequest `json:"request"`
	Entries    []AcquisitionEntry `json:"entries"`
	Messages   []string           `json:"messages"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at,omitempty"`
}

// Records returns successful records in acquisition order.
func (o *AcquisitionOutcome) Records() []ProxyRecord {
	if o == nil {
		return nil
	}
	var records []ProxyRecord
	for _, e := range o.Entries {
		if e.Record != nil {
			records = append(records, *e.Record)
		}
	}
	return records
}

// Failures returns failed entries in acquisition order.
func (o *AcquisitionOutcome) Failures() []AcquisitionFailure {
	if o == nil {
		return nil
	}
	var failures []AcquisitionFailure
	for _, e := range o.Entries {
		if e.Failure != nil {
			failures = append(failures, *e.Failure)
		}
	}
	return failures
}

// Clone returns a deep enough copy for handing to readers outside the owner's lock.
func (o *AcquisitionOutcome) Clone() *AcquisitionOutcome {
	if o == nil {
		return nil
	}
	c := *o
	c.Entries = append([]AcquisitionEntry(nil), o.Entries...)
	c.Messages = append([]string(nil), o.Messages...)
	return &c
}

// ConnectionState is the tri-state result of a connection test.
type ConnectionState string

const (
	ConnectionUnknown ConnectionState = "unknown"
	ConnectionOK      ConnectionState = "ok"
	ConnectionFailed  ConnectionState = "failed"
)

// ConnectionStatus is produced only by the connection validator.
type ConnectionStatus struct {
	State     ConnectionState `json:"state"`
	Message   string          `json:"message"`
	Record    *ProxyRecord    `json:"record,omitempty"`
	CheckedAt time.Time       `json:"checked_at,omitempty"`
}

// UserAgent is one row of the bundled user-agent reference table.
type UserAgent struct {
	Browser   string `json:"browser" yaml:"browser"`
	Version   string `json:"version" yaml:"version"`
	OS        string `json:"os" yaml:"os"`
	Device    string `json:"device" yaml:"device"`
	UserAgent string `json:"user_agent" yaml:"userAgent"`
}

// UserAgentGroup is a platform heading with its sorted agents.
type UserAgentGroup struct {
	Platform string      `json:"platform"`
	Agents   []UserAgent `json:"agents"`
}
