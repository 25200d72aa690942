package core

// error_messages.go maps technical errors to user-facing messages with
// support codes.
//
// Codes by category:
//
//	DB001-DB099    database connectivity and contention
//	LOAD001-099    bulk load failures
//	FILE001-099    source file problems
//	TBL001-099     tables, columns and rows
//	QRY001-099     read API queries
//	REQ001-099     request lifecycle
//	RATE001-099    throttling
//	ERR000         no match; check the logs for the technical error
//
// Sentinel errors are matched with errors.Is first. Remaining errors are
// matched case-insensitively against errorPatterns; the first match wins,
// so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tabload/internal/source"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrTypeMismatch, UserMessage{
		Message: "A value does not match the type of its column",
		Action:  "Fix the value named in the error, or load the column into a new table",
		Code:    "LOAD001",
	}},
	{ErrWriterBusy, UserMessage{
		Message: "Another load, index or drop is in progress",
		Action:  "Please wait a moment and try again",
		Code:    "LOAD002",
	}},
	{ErrWriterClosed, UserMessage{
		Message: "The server is shutting down",
		Action:  "Retry the write once the server is back",
		Code:    "LOAD003",
	}},
	{source.ErrEmptyFile, UserMessage{
		Message: "The file is empty",
		Action:  "Upload a file with a header row",
		Code:    "FILE005",
	}},
	{source.ErrUnsupportedFormat, UserMessage{
		Message: "File format is not supported",
		Action:  "Use CSV, TSV, XLSX, JSON or NDJSON",
		Code:    "FILE006",
	}},
	{source.ErrTooManyFields, UserMessage{
		Message: "A row has more fields than the header",
		Action:  "Fix the line named in the error, or add the missing header columns",
		Code:    "FILE007",
	}},
	{ErrUnknownTable, UserMessage{
		Message: "Table not found",
		Action:  "Check the table name, or refresh the catalog",
		Code:    "TBL001",
	}},
	{ErrInvalidTableName, UserMessage{
		Message: "Table name is not valid",
		Action:  "Use a non-empty name of at most 63 bytes",
		Code:    "TBL002",
	}},
	{ErrUnknownColumn, UserMessage{
		Message: "Column not found",
		Action:  "Check the column names in /{table}/meta",
		Code:    "TBL003",
	}},
	{ErrRowNotFound, UserMessage{
		Message: "Row not found",
		Action:  "Check the id",
		Code:    "TBL004",
	}},
	{ErrInvalidFilter, UserMessage{
		Message: "Filter is not valid for this column",
		Action:  "Use filter[column]=op:value with a value of the column's type",
		Code:    "QRY001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or raise LOAD_TIMEOUT",
		Code:    "REQ002",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database connectivity and contention
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},

	// Bulk load
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A row with this index already exists",
			Action:  "Another writer may have appended to the table; reload the file",
			Code:    "LOAD003",
		},
	},

	// Source files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Load the file with the tabload CLI instead",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check quoting and the delimiter",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid json",
		msg: UserMessage{
			Message: "File is not valid JSON",
			Action:  "Use an array of objects or one object per line",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Attach the file as the \"file\" form field",
			Code:    "FILE004",
		},
	},

	// Throttling
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Sentinel
// errors win over text patterns; ERR000 is the fallback.
//
// Example:
//
//	msg := MapError(fmt.Errorf("load: %w", ErrWriterBusy))
//	// msg.Code == "LOAD002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
