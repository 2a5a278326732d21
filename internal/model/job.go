package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of an analysis job
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// InputType classifies what the job's input value contains
type InputType string

const (
	InputText InputType = "text" // Free text to analyze directly
	InputURL  InputType = "url"  // URL to fetch and extract before analysis
)

// PipelineVariant names one of the interchangeable analysis strategies
type PipelineVariant string

const (
	VariantOrchestrated        PipelineVariant = "orchestrated"
	VariantMonolithicCanonical PipelineVariant = "monolithic_canonical"
	VariantMonolithicDynamic   PipelineVariant = "monolithic_dynamic"
)

// Job represents a submitted fact-verification job.
// The harness mutates only status/progress; terminal results go through
// the result sink. Jobs are never deleted here - lifecycle ends at
// SUCCEEDED or FAILED.
type Job struct {
	ID              string          `json:"id"`
	InputType       InputType       `json:"input_type"`
	InputValue      string          `json:"input_value"`
	PipelineVariant PipelineVariant `json:"pipeline_variant"`
	Status          JobStatus       `json:"status"`
	Progress        int             `json:"progress"` // 0-100
	ResultPayload   json.RawMessage `json:"result_payload,omitempty"`
	EnqueuedAt      time.Time       `json:"enqueued_at"`
}

// IsTerminal reports whether the job has reached a final state
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// LogLevel classifies status-sink messages
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)
