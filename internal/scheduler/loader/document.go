// Package loader parses a declarative YAML schedule document into jobs
// and triggers and installs them atomically into a scheduler.Scheduler.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Document is the top-level shape of a schedule descriptor.
type Document struct {
	Schedule ScheduleDoc `yaml:"schedule" json:"schedule"`
}

// ScheduleDoc holds the declared jobs and triggers.
type ScheduleDoc struct {
	Jobs     []JobDoc     `yaml:"jobs" json:"jobs"`
	Triggers []TriggerDoc `yaml:"triggers" json:"triggers"`
}

// DataEntry is one key/value pair of a job or trigger data map.
type DataEntry struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// JobDoc declares one job.
type JobDoc struct {
	Name               string      `yaml:"name" json:"name"`
	Group              string      `yaml:"group" json:"group"`
	Description        string      `yaml:"description" json:"description"`
	JobClass           string      `yaml:"job-class" json:"job-class"`
	ConcurrencyAllowed *bool       `yaml:"concurrency-allowed" json:"concurrency-allowed"`
	Durability         bool        `yaml:"durability" json:"durability"`
	DataMap            []DataEntry `yaml:"data-map" json:"data-map"`
}

// TriggerDoc declares one trigger. Variant-specific fields are only
// meaningful for the matching Variant value.
type TriggerDoc struct {
	Variant     string `yaml:"variant" json:"variant"`
	Name        string `yaml:"name" json:"name"`
	Group       string `yaml:"group" json:"group"`
	Description string `yaml:"description" json:"description"`
	JobName     string `yaml:"job-name" json:"job-name"`
	JobGroup    string `yaml:"job-group" json:"job-group"`

	StartTime               string `yaml:"start-time" json:"start-time"`
	StartTimeSecondsInFuture *int  `yaml:"start-time-seconds-in-future" json:"start-time-seconds-in-future"`
	EndTime                 string `yaml:"end-time" json:"end-time"`

	Priority          int         `yaml:"priority" json:"priority"`
	MisfireInstruction string     `yaml:"misfire-instruction" json:"misfire-instruction"`
	CalendarName      string      `yaml:"calendar-name" json:"calendar-name"`
	DataMap           []DataEntry `yaml:"data-map" json:"data-map"`

	// simple
	RepeatInterval string `yaml:"repeat-interval" json:"repeat-interval"`
	RepeatCount    *int   `yaml:"repeat-count" json:"repeat-count"`

	// cron
	CronExpression string `yaml:"cron-expression" json:"cron-expression"`
	TimeZone       string `yaml:"time-zone" json:"time-zone"`

	// calendar-interval
	Interval int    `yaml:"interval" json:"interval"`
	Unit     string `yaml:"unit" json:"unit"`
}

// Parse reads a descriptor document. If path ends in .yaml/.yml, data is
// coerced through YAML before strict JSON decoding; otherwise it is
// decoded as JSON directly. Either way, unknown fields are rejected.
func Parse(path string, data []byte) (*Document, error) {
	jb, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("descriptor decode: %w", err)
	}
	return &doc, nil
}

func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	v = normalizeYAML(v)
	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled; yaml.v3 decodes mapping keys as "any" by default.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
