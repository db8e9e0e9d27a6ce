package api

import (
	"time"

	"github.com/ssargent/mb2/pkg/inspect"
	"github.com/ssargent/mb2/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Cause names the validation failure, as reported by codec.CauseName.
	Cause string `json:"cause,omitempty"`
}

// DumpResponse is a stored dump together with its parsed report.
type DumpResponse struct {
	storage.Dump
	Report *inspect.Report `json:"report,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port               int
	Bind               string
	APIKey             string
	MaxDumpSize        int64
	RelaxedTermination bool
	ShutdownTimeout    time.Duration
}

const (
	formatInformation = "mbi"
	formatHeader      = "header"
)
