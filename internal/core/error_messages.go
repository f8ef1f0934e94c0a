package core

// error_messages.go maps request-level errors to messages API clients can act on.
//
// Row failures never pass through here: they are reported verbatim in
// ImportResult.Errors. MapError is for errors that stop a request before
// or around the pipeline, such as a missing file part or a saturated
// import limiter.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Empty file: The uploaded file is empty
//	         Patterns: "import file is empty"
//
//	IMP002 - Wrong type: Only CSV files are allowed
//	         Patterns: "not a csv file"
//
//	IMP003 - No file: No file was provided
//	         Patterns: "no file provided"
//
//	IMP004 - Busy: Too many imports in progress
//	         Patterns: "too many concurrent imports"
//
//	IMP005 - Too large: File exceeds the maximum upload size
//	         Patterns: "request body too large", "file too large"
//
//	IMP006 - Unknown import: Import not found
//	         Patterns: "import not found"
//
//	IMP007 - Bad import ID: Import ID is not a valid UUID
//	         Patterns: "invalid import id"
//
//	IMP008 - Request cancelled
//	         Patterns: "context canceled"
//
//	IMP009 - Request timeout
//	         Patterns: "context deadline exceeded"
//
//	IMP010 - Bad limit: History limit must be a non-negative whole number
//	         Patterns: "invalid limit"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate: A record with this key already exists
//	        Patterns: "duplicate key", "unique constraint"
//
//	DB002 - Foreign key: Referenced record does not exist
//	        Patterns: "foreign key"
//
//	DB003 - Unavailable: Unable to reach the database
//	        Patterns: "connection refused", "connection reset"
//
//	DB004 - Busy: Database was busy with conflicting operations
//	        Patterns: "deadlock", "database is locked"
//
//	DB005 - Timeout: Database operation timed out
//	        Patterns: "timeout"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// Anything else maps to ERR000.

import (
	"fmt"
	"strings"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

// errorPattern maps any of several error text fragments to one message.
type errorPattern struct {
	fragments []string
	msg       UserMessage
}

// errorPatterns is matched in order against the lowercased error text, so
// specific fragments must come before general ones ("context deadline
// exceeded" before "timeout").
var errorPatterns = []errorPattern{
	// Import requests
	{[]string{"import file is empty"}, UserMessage{
		"The uploaded file is empty", "Upload a CSV file with a header row and donation rows", "IMP001"}},
	{[]string{"not a csv file"}, UserMessage{
		"Only CSV files are allowed", "Save the file as .csv and upload it again", "IMP002"}},
	{[]string{"no file provided"}, UserMessage{
		"No file was provided", "Attach the CSV file in the 'file' form field", "IMP003"}},
	{[]string{"too many concurrent imports"}, UserMessage{
		"System is busy processing other imports", "Please wait a moment and try again", "IMP004"}},
	{[]string{"request body too large", "file too large"}, UserMessage{
		"File exceeds the maximum upload size", "Split the file into smaller files", "IMP005"}},
	{[]string{"import not found"}, UserMessage{
		"Import not found", "Check the import ID returned in the X-Import-ID header", "IMP006"}},
	{[]string{"invalid import id"}, UserMessage{
		"Import ID is not valid", "Use the UUID returned in the X-Import-ID header", "IMP007"}},
	{[]string{"context canceled"}, UserMessage{
		"Request was cancelled", "Please try again", "IMP008"}},
	{[]string{"context deadline exceeded"}, UserMessage{
		"Request timed out", "Try a smaller file or try again later", "IMP009"}},
	{[]string{"invalid limit"}, UserMessage{
		"History limit must be a non-negative whole number", "Pass limit as a whole number, or 0 for the default", "IMP010"}},

	// Database
	{[]string{"duplicate key", "unique constraint"}, UserMessage{
		"A record with this key already exists", "Please try again", "DB001"}},
	{[]string{"foreign key"}, UserMessage{
		"Referenced record does not exist", "Check that the campaign still exists", "DB002"}},
	{[]string{"connection refused", "connection reset"}, UserMessage{
		"Unable to connect to database", "Please try again in a few moments", "DB003"}},
	{[]string{"deadlock", "database is locked"}, UserMessage{
		"Database was busy with conflicting operations", "Please try again", "DB004"}},
	{[]string{"timeout"}, UserMessage{
		"Database operation timed out", "Please try again later", "DB005"}},

	// Rate limiting
	{[]string{"rate limit"}, UserMessage{
		"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. The first
// matching pattern wins; unmatched errors get the ERR000 fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		for _, f := range ep.fragments {
			if strings.Contains(text, f) {
				return ep.msg
			}
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
