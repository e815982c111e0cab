// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"seqgen/internal/domain/sequence"
)

// ProvisionRequest creates a new sequence in the caller's scope.
type ProvisionRequest struct {
	Name        string `json:"name" binding:"required"`
	Pattern     string `json:"pattern" binding:"required"`
	ResetPeriod string `json:"resetPeriod"`
	Padding     int    `json:"padding"`
	StepSize    int64  `json:"stepSize"`
	ResetLimit  int64  `json:"resetLimit"`
}

// Config builds the domain config, filling defaults the request omits.
func (r ProvisionRequest) Config(scopeID string) sequence.Config {
	cfg := sequence.DefaultConfig(scopeID, r.Name, r.Pattern)
	if r.ResetPeriod != "" {
		cfg.ResetPeriod = sequence.ResetPeriod(r.ResetPeriod)
	}
	if r.Padding > 0 {
		cfg.Padding = r.Padding
	}
	if r.StepSize > 0 {
		cfg.StepSize = r.StepSize
	}
	cfg.ResetLimit = r.ResetLimit
	return cfg
}

// UpdateRequest replaces the mutable parts of a sequence configuration.
type UpdateRequest struct {
	Pattern     string `json:"pattern" binding:"required"`
	ResetPeriod string `json:"resetPeriod" binding:"required"`
	Padding     int    `json:"padding" binding:"required"`
	StepSize    int64  `json:"stepSize" binding:"required"`
	ResetLimit  int64  `json:"resetLimit"`
	Enabled     *bool  `json:"enabled"`
}

// GenerateRequest carries the generation context for variable resolution.
type GenerateRequest struct {
	Context map[string]string `json:"context"`
}

// SetCounterRequest overrides the counter value.
type SetCounterRequest struct {
	Value *int64 `json:"value" binding:"required"`
}

// SetEnabledRequest toggles soft-disable.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SequenceResponse is the API view of a sequence configuration.
type SequenceResponse struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	ResetPeriod string `json:"resetPeriod"`
	Padding     int    `json:"padding"`
	StepSize    int64  `json:"stepSize"`
	ResetLimit  int64  `json:"resetLimit,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// NewSequenceResponse maps a domain config.
func NewSequenceResponse(cfg sequence.Config) SequenceResponse {
	return SequenceResponse{
		Name:        cfg.Name,
		Pattern:     cfg.Pattern,
		ResetPeriod: string(cfg.ResetPeriod),
		Padding:     cfg.Padding,
		StepSize:    cfg.StepSize,
		ResetLimit:  cfg.ResetLimit,
		Enabled:     cfg.Enabled,
	}
}

// GeneratedResponse is the result of generate and preview calls.
type GeneratedResponse struct {
	Value       string            `json:"value"`
	Counter     int64             `json:"counter"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewGeneratedResponse maps a domain result.
func NewGeneratedResponse(n *sequence.GeneratedNumber) GeneratedResponse {
	return GeneratedResponse{
		Value:       n.Value,
		Counter:     n.Counter,
		GeneratedAt: n.GeneratedAt,
		Metadata:    n.Metadata,
	}
}

// CounterResponse is the current counter state.
type CounterResponse struct {
	Value       int64      `json:"value"`
	LastResetAt *time.Time `json:"lastResetAt,omitempty"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items []SequenceResponse `json:"items"`
	Total int                `json:"total"`
}
