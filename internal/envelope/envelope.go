// Package envelope defines the machine-readable output contract emitted by
// cmd/tsq in --json mode: a versioned success/error envelope carrying
// either a command's data payload or its categorized error.
package envelope

import (
	"encoding/json"
	"io"

	"github.com/misty-step/tsq/internal/tsqerr"
)

// SchemaVersion is the current envelope schema version.
const SchemaVersion = 1

// Response is the top-level JSON object written for every command.
type Response struct {
	SchemaVersion int        `json:"schema_version"`
	Command       string     `json:"command"`
	OK            bool       `json:"ok"`
	Data          any        `json:"data,omitempty"`
	Error         *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the machine error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteSuccess writes a success envelope for command carrying data.
func WriteSuccess(w io.Writer, command string, data any) error {
	return write(w, Response{SchemaVersion: SchemaVersion, Command: command, OK: true, Data: data})
}

// WriteError writes a failure envelope for command, translating err's
// tsqerr.Code and details when present.
func WriteError(w io.Writer, command string, err error) error {
	body := &ErrorBody{Code: "INTERNAL_ERROR", Message: err.Error()}
	var tsqErr *tsqerr.Error
	if tsqerr.As(err, &tsqErr) {
		body.Code = string(tsqErr.Code)
		body.Message = tsqErr.Message
		body.Details = tsqErr.Details
	}
	return write(w, Response{SchemaVersion: SchemaVersion, Command: command, OK: false, Error: body})
}

func write(w io.Writer, resp Response) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
