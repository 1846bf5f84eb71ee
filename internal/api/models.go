package api

import (
	"gorm.io/datatypes"

	"github.com/bherbruck/scriptcache/internal/script"
	"github.com/bherbruck/scriptcache/internal/storage"
)

// RegisterScriptRequest represents a request to register or replace a script
type RegisterScriptRequest struct {
	Name        string         `json:"name"`
	Content     string         `json:"content"`
	Description string         `json:"description,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}

// RegisterScriptResponse is returned after a script is registered
type RegisterScriptResponse struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Stored bool   `json:"stored"`
}

// ExecuteRequest carries the KEYS and ARGV of a script invocation
type ExecuteRequest struct {
	Keys []string      `json:"keys,omitempty"`
	Args []interface{} `json:"args,omitempty"`
}

// ExecuteResponse carries the script's reply
type ExecuteResponse struct {
	Name   string      `json:"name"`
	Result interface{} `json:"result"`
}

// ListScriptsResponse lists registered scripts and whether their digests are cached
type ListScriptsResponse struct {
	Scripts []script.ScriptStatus `json:"scripts"`
}

// ListStoredScriptsResponse lists script rows from the database
type ListStoredScriptsResponse struct {
	Scripts []storage.Script `json:"scripts"`
}

// InvalidateResponse reports how many cached digests were dropped
type InvalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
