package engine

import (
	"encoding/json"
	"regexp"
	"time"

	"alertengine/internal/models"

	"github.com/google/uuid"
)

// ipRegex matches dotted-quad IPv4 substrings so error messages destined for
// alerts never leak a caller's or backend's address.
var ipRegex = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

const redactedIP = "<redacted-ip>"

// ObfuscateIPs replaces IPv4 substrings in msg with a redaction marker.
func ObfuscateIPs(msg string) string {
	return ipRegex.ReplaceAllString(msg, redactedIP)
}

// BuildAlerts produces one Alert per result slice for a fired trigger.
func BuildAlerts(trigger models.Trigger, monitor models.Monitor, query string, slices []models.ResultSlice, executionID string, now time.Time) ([]models.Alert, error) {
	alerts := make([]models.Alert, 0, len(slices))
	for _, slice := range slices {
		resultsJSON, err := resultsToJSONB(slice)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, models.Alert{
			ID:             uuid.NewString(),
			MonitorID:      monitor.ID,
			MonitorName:    monitor.Name,
			MonitorVersion: monitor.Version,
			TriggerID:      trigger.ID,
			TriggerName:    trigger.Name,
			Query:          query,
			QueryResults:   resultsJSON,
			TriggeredTime:  now,
			ExpirationTime: now.Add(time.Duration(trigger.ExpireDurationMinutes) * time.Minute),
			Severity:       trigger.Severity,
			ExecutionID:    executionID,
			RoutingKey:     monitor.ID,
		})
	}
	return alerts, nil
}

// BuildErrorAlert emits exactly one alert describing a composition,
// execution, or evaluation failure. The error message is obfuscated before
// persistence.
func BuildErrorAlert(trigger models.Trigger, monitor models.Monitor, query string, execErr error, executionID string, now time.Time) models.Alert {
	msg := ObfuscateIPs(execErr.Error())
	return models.Alert{
		ID:             uuid.NewString(),
		MonitorID:      monitor.ID,
		MonitorName:    monitor.Name,
		MonitorVersion: monitor.Version,
		TriggerID:      trigger.ID,
		TriggerName:    trigger.Name,
		Query:          query,
		QueryResults:   models.JSONB{},
		TriggeredTime:  now,
		ExpirationTime: now.Add(time.Duration(trigger.ExpireDurationMinutes) * time.Minute),
		Severity:       models.SeverityError,
		ErrorMessage:   &msg,
		ExecutionID:    executionID,
		RoutingKey:     monitor.ID,
	}
}

func resultsToJSONB(slice models.ResultSlice) (models.JSONB, error) {
	encoded, err := json.Marshal(slice)
	if err != nil {
		return nil, err
	}
	var out models.JSONB
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}
