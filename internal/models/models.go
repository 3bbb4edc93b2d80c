package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"alertengine/internal/errors"
)

// JSONB stores an arbitrary JSON document in a jsonb column.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}

// EpochMillis marshals a time.Time to/from the epoch-millisecond wire format
// required for monitor/alert timestamps.
type EpochMillis time.Time

func (e EpochMillis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(e).UnixMilli())
}

func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*e = EpochMillis(time.UnixMilli(ms))
	return nil
}

func (e EpochMillis) Time() time.Time { return time.Time(e) }

func NewEpochMillis(t time.Time) EpochMillis { return EpochMillis(t) }

// MonitorType tags a monitor's variant. Variants are siblings, not
// subclasses: each tag maps to its own runner, selected by the engine's
// runner registry.
type MonitorType string

const (
	// MonitorTypePQL is the piped-query-language monitor this engine runs.
	MonitorTypePQL MonitorType = "pql"
	// MonitorTypeSearchInput is the v1 search-input variant. No runner for
	// it ships in this repository; the tag exists so documents written by
	// the v1 service still round-trip through the scheduled-jobs store.
	MonitorTypeSearchInput MonitorType = "search_input"
)

func (t MonitorType) Valid() bool {
	switch t {
	case MonitorTypePQL, MonitorTypeSearchInput:
		return true
	}
	return false
}

// Severity is the trigger's urgency classification.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// TriggerMode controls whether a trigger materializes one alert per fired
// run or one alert per matching result row.
type TriggerMode string

const (
	ModeResultSet TriggerMode = "RESULT_SET"
	ModePerResult TriggerMode = "PER_RESULT"
)

func (m TriggerMode) Valid() bool {
	switch m {
	case ModeResultSet, ModePerResult:
		return true
	}
	return false
}

// ConditionType selects how a trigger decides whether it fired.
type ConditionType string

const (
	ConditionNumberOfResults ConditionType = "NUMBER_OF_RESULTS"
	ConditionCustom          ConditionType = "CUSTOM"
)

func (c ConditionType) Valid() bool {
	switch c {
	case ConditionNumberOfResults, ConditionCustom:
		return true
	}
	return false
}

// Comparator is the operator applied to response.total for NUMBER_OF_RESULTS
// triggers.
type Comparator string

const (
	CompGT  Comparator = ">"
	CompGTE Comparator = ">="
	CompLT  Comparator = "<"
	CompLTE Comparator = "<="
	CompEQ  Comparator = "="
	CompNEQ Comparator = "!="
)

func (c Comparator) Valid() bool {
	switch c {
	case CompGT, CompGTE, CompLT, CompLTE, CompEQ, CompNEQ:
		return true
	}
	return false
}

// Apply evaluates `total <comparator> value`.
func (c Comparator) Apply(total, value int) bool {
	switch c {
	case CompGT:
		return total > value
	case CompGTE:
		return total >= value
	case CompLT:
		return total < value
	case CompLTE:
		return total <= value
	case CompEQ:
		return total == value
	case CompNEQ:
		return total != value
	}
	return false
}

// Schedule describes how often a monitor's runner is invoked.
type Schedule struct {
	Interval int    `json:"interval"`
	Unit     string `json:"unit"`
}

// Principal is the owner identity captured on a Monitor at creation/update
// time, pushed onto the principal context during the monitor's runs.
type Principal struct {
	Name         string   `json:"name"`
	BackendRoles []string `json:"backend_roles"`
	Roles        []string `json:"roles"`
}

// Action is one destination a fired trigger dispatches to.
type Action struct {
	ID              string `json:"id"`
	DestinationID   string `json:"destination_id"`
	SubjectTemplate string `json:"subject_template"`
	MessageTemplate string `json:"message_template"`
}

// Trigger evaluates a monitor's query results and, when its condition is
// satisfied, materializes alerts and dispatches notifications.
type Trigger struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Severity      Severity      `json:"severity"`
	Mode          TriggerMode   `json:"mode"`
	ConditionType ConditionType `json:"condition_type"`

	// NUMBER_OF_RESULTS fields.
	Op    Comparator `json:"op,omitempty"`
	Value *int       `json:"value,omitempty"`

	// CUSTOM fields: a PQL fragment producing `eval <name> = <bool-expr>`.
	CustomFragment string `json:"custom_fragment,omitempty"`

	ThrottleDurationMinutes int        `json:"throttle_duration_minutes,omitempty"`
	ExpireDurationMinutes   int        `json:"expire_duration_minutes"`
	Actions                 []Action   `json:"actions"`
	LastFiredTime           *time.Time `json:"last_fired_time,omitempty"`
}

// Validate enforces the duration bounds and the condition-type
// field-presence rules.
func (t Trigger) Validate() error {
	if t.ID == "" {
		return errors.NewKind(errors.KindValidation, "trigger id is required")
	}
	if !t.Severity.Valid() {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: invalid severity %q", t.ID, t.Severity))
	}
	if !t.Mode.Valid() {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: invalid mode %q", t.ID, t.Mode))
	}
	if !t.ConditionType.Valid() {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: invalid condition type %q", t.ID, t.ConditionType))
	}
	switch t.ConditionType {
	case ConditionNumberOfResults:
		if !t.Op.Valid() {
			return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: invalid comparator %q", t.ID, t.Op))
		}
		if t.Value == nil || *t.Value < 0 {
			return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: value must be >= 0", t.ID))
		}
	case ConditionCustom:
		if t.CustomFragment == "" {
			return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: custom fragment is required", t.ID))
		}
	}
	if t.ThrottleDurationMinutes != 0 && t.ThrottleDurationMinutes < 1 {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: throttleDuration must be >= 1 minute", t.ID))
	}
	if t.ExpireDurationMinutes < 1 {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("trigger %s: expireDuration must be >= 1 minute", t.ID))
	}
	return nil
}

// Monitor is a scheduled PQL query evaluated by one or more triggers.
//
// Identity is (ID, Version). monitorstore.Index saves the document under
// the Version it carries, replacing a row with the same (ID, Version); the
// Monitor Runner's own lastFiredTime persistence is a targeted partial
// update (see monitorstore).
type Monitor struct {
	ID      string `json:"id" gorm:"primaryKey;column:id"`
	Version int    `json:"version" gorm:"primaryKey;column:version"`

	Type        MonitorType `json:"type" gorm:"column:type"`
	Name        string      `json:"name" gorm:"column:name"`
	Enabled     bool        `json:"enabled" gorm:"column:enabled"`
	EnabledTime *time.Time  `json:"enabled_time" gorm:"column:enabled_time"`

	Owner                 Principal `json:"owner" gorm:"-"`
	Schedule              Schedule  `json:"schedule" gorm:"-"`
	LookBackWindowMinutes *int      `json:"look_back_window_minutes" gorm:"column:look_back_window_minutes"`
	TimestampField        string    `json:"timestamp_field" gorm:"column:timestamp_field"`
	QueryLanguage         string    `json:"query_language" gorm:"column:query_language"`
	Query                 string    `json:"query" gorm:"column:query"`

	Triggers []Trigger `json:"triggers" gorm:"-"`

	// *JSON columns back the Owner, Schedule and Triggers fields above:
	// monitorstore's marshalMonitor fills them before a save and
	// unmarshalMonitor decodes them after a load; the typed fields are what
	// the rest of the codebase reads and writes.
	OwnerJSON    JSONB `json:"-" gorm:"column:owner;type:jsonb"`
	ScheduleJSON JSONB `json:"-" gorm:"column:schedule;type:jsonb"`
	TriggersJSON JSONB `json:"-" gorm:"column:triggers;type:jsonb"`

	SchemaVersion int       `json:"-" gorm:"column:schema_version;default:1"`
	CreatedAt     time.Time `json:"-" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `json:"-" gorm:"column:updated_at;autoUpdateTime"`
}

func (Monitor) TableName() string { return "monitors" }

// Validate enforces enabled/enabledTime consistency and the 1–10 trigger
// count, and cascades into each trigger's own Validate.
func (m Monitor) Validate() error {
	if m.ID == "" {
		return errors.NewKind(errors.KindValidation, "monitor id is required")
	}
	if !m.Type.Valid() {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("monitor %s: invalid type %q", m.ID, m.Type))
	}
	if m.Enabled && m.EnabledTime == nil {
		return errors.NewKind(errors.KindValidation, "enabled monitor must have enabledTime set")
	}
	if !m.Enabled && m.EnabledTime != nil {
		return errors.NewKind(errors.KindValidation, "disabled monitor must not have enabledTime set")
	}
	if len(m.Triggers) < 1 || len(m.Triggers) > 10 {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("monitor %s: trigger count must be between 1 and 10, got %d", m.ID, len(m.Triggers)))
	}
	if m.LookBackWindowMinutes != nil && *m.LookBackWindowMinutes > 0 && m.TimestampField == "" {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("monitor %s: timestampField is required when lookBackWindow is set", m.ID))
	}
	seen := make(map[string]struct{}, len(m.Triggers))
	for _, t := range m.Triggers {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seen[t.ID]; dup {
			return errors.NewKind(errors.KindValidation, fmt.Sprintf("monitor %s: duplicate trigger id %s", m.ID, t.ID))
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// TriggerByID returns the trigger with the given id, or ok=false if the
// monitor no longer carries it (the sweeper treats this as "reshaped").
func (m Monitor) TriggerByID(id string) (Trigger, bool) {
	for _, t := range m.Triggers {
		if t.ID == id {
			return t, true
		}
	}
	return Trigger{}, false
}

// Column is one entry of a query response's schema.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResponse is the shape returned by the PQL executor.
type QueryResponse struct {
	Schema   []Column        `json:"schema"`
	Datarows [][]interface{} `json:"datarows"`
	Total    int             `json:"total"`
	Size     int             `json:"size"`
}

// ResultSlice is one alert-sized portion of a QueryResponse: either the
// whole response (RESULT_SET) or a single matching row (PER_RESULT).
type ResultSlice struct {
	Schema   []Column        `json:"schema"`
	Datarows [][]interface{} `json:"datarows"`
	Total    int             `json:"total"`
	Size     int             `json:"size"`
}

// Alert is an immutable record produced when a trigger fires or fails.
type Alert struct {
	ID string `json:"id" gorm:"primaryKey;column:id"`

	MonitorID      string `json:"monitor_id" gorm:"column:monitor_id;index:idx_alerts_routing"`
	MonitorName    string `json:"monitor_name" gorm:"column:monitor_name"`
	MonitorVersion int    `json:"monitor_version" gorm:"column:monitor_version"`

	TriggerID   string `json:"trigger_id" gorm:"column:trigger_id"`
	TriggerName string `json:"trigger_name" gorm:"column:trigger_name"`

	Query          string    `json:"query" gorm:"column:query;type:text"`
	QueryResults   JSONB     `json:"query_results" gorm:"column:query_results;type:jsonb"`
	TriggeredTime  time.Time `json:"triggered_time" gorm:"column:triggered_time;index"`
	ExpirationTime time.Time `json:"expiration_time" gorm:"column:expiration_time;index"`

	Severity     Severity `json:"severity" gorm:"column:severity"`
	ErrorMessage *string  `json:"error_message,omitempty" gorm:"column:error_message"`
	ExecutionID  string   `json:"execution_id" gorm:"column:execution_id"`

	// RoutingKey mirrors MonitorID, modeling the search-cluster's
	// document-routing key so every alert for one monitor co-locates.
	RoutingKey string `json:"-" gorm:"column:routing_key;index:idx_alerts_routing"`
	Version    int64  `json:"-" gorm:"column:version"`

	CreatedAt time.Time `json:"-" gorm:"column:created_at;autoCreateTime"`
}

func (Alert) TableName() string { return "alerts_active" }

// AlertHistory is the append-only, rolled-over copy of expired alerts.
type AlertHistory struct {
	Alert
}

func (AlertHistory) TableName() string { return "alerts_history" }

// alertWireFormat mirrors Alert but renders the timestamp fields as the
// epoch-millisecond wire format existing callers expect.
type alertWireFormat struct {
	ID             string      `json:"id"`
	MonitorID      string      `json:"monitor_id"`
	MonitorName    string      `json:"monitor_name"`
	MonitorVersion int         `json:"monitor_version"`
	TriggerID      string      `json:"trigger_id"`
	TriggerName    string      `json:"trigger_name"`
	Query          string      `json:"query"`
	QueryResults   JSONB       `json:"query_results"`
	TriggeredTime  EpochMillis `json:"triggered_time"`
	ExpirationTime EpochMillis `json:"expiration_time"`
	Severity       Severity    `json:"severity"`
	ErrorMessage   *string     `json:"error_message,omitempty"`
	ExecutionID    string      `json:"execution_id"`
}

// MarshalJSON renders triggered_time and expiration_time as epoch millis
// rather than Go's default RFC3339.
func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(alertWireFormat{
		ID:             a.ID,
		MonitorID:      a.MonitorID,
		MonitorName:    a.MonitorName,
		MonitorVersion: a.MonitorVersion,
		TriggerID:      a.TriggerID,
		TriggerName:    a.TriggerName,
		Query:          a.Query,
		QueryResults:   a.QueryResults,
		TriggeredTime:  NewEpochMillis(a.TriggeredTime),
		ExpirationTime: NewEpochMillis(a.ExpirationTime),
		Severity:       a.Severity,
		ErrorMessage:   a.ErrorMessage,
		ExecutionID:    a.ExecutionID,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (a *Alert) UnmarshalJSON(data []byte) error {
	var w alertWireFormat
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.ID = w.ID
	a.MonitorID = w.MonitorID
	a.MonitorName = w.MonitorName
	a.MonitorVersion = w.MonitorVersion
	a.TriggerID = w.TriggerID
	a.TriggerName = w.TriggerName
	a.Query = w.Query
	a.QueryResults = w.QueryResults
	a.TriggeredTime = w.TriggeredTime.Time()
	a.ExpirationTime = w.ExpirationTime.Time()
	a.Severity = w.Severity
	a.ErrorMessage = w.ErrorMessage
	a.ExecutionID = w.ExecutionID
	return nil
}

// Validate checks that the alert's expiry derives from its trigger's
// expireDuration.
func (a Alert) Validate(trigger Trigger) error {
	want := a.TriggeredTime.Add(time.Duration(trigger.ExpireDurationMinutes) * time.Minute)
	if !a.ExpirationTime.Equal(want) {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("alert %s: expirationTime must equal triggeredTime + expireDuration", a.ID))
	}
	if !a.ExpirationTime.After(a.TriggeredTime) {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("alert %s: expirationTime must be after triggeredTime", a.ID))
	}
	return nil
}
