package errors

import (
	"fmt"
	"os"
	"strings"

	"github.com/silicakes/deluge-extensions-sub001/pkg/logger"

	"github.com/fatih/color"
)

type ExitCode int

const (
	ExitCodeSuccess       ExitCode = 0
	ExitCodeGeneral       ExitCode = 1
	ExitCodeConfig        ExitCode = 2
	ExitCodeTransport     ExitCode = 3
	ExitCodeDevice        ExitCode = 4
	ExitCodeSession       ExitCode = 5
	ExitCodeValidation    ExitCode = 6
	ExitCodeFileOperation ExitCode = 7
	ExitCodeCancellation  ExitCode = 8
	ExitCodeTimeout       ExitCode = 9
)

// Stable error categories. Callers may key UI decisions on these; the
// human-readable message is for display only.
const (
	CategoryNoOutput        = "transport.no_output"
	CategoryTimeout         = "transport.timeout"
	CategoryFrameFormat     = "transport.frame_format"
	CategoryUnexpectedReply = "transport.unexpected_reply"
	CategorySessionNotOpen  = "session.not_opened"
	CategorySessionRenewed  = "session.renewed"
	CategorySessionReset    = "session.reset"
	CategoryInvalidFilename = "client.invalid_filename"
	CategoryPathTooLong     = "client.path_too_long"
	CategoryCancelled       = "client.cancelled"
	CategoryConfig          = "client.config"
)

// fatTexts maps the device's FAT-style result codes to their fixed
// human-readable messages. Index is the code.
var fatTexts = []string{
	"OK",
	"Disk error",
	"Internal error",
	"Drive not ready",
	"File not found",
	"Path not found",
	"Invalid path name",
	"Access denied",
	"File exists",
	"Directory is not empty",
	"Invalid object",
	"Write-protected",
	"Invalid drive",
	"No filesystem",
	"Format aborted",
	"No more files",
	"Cannot allocate memory",
	"Too many open files",
	"Invalid parameter",
}

const (
	FatOK             = 0
	FatFileNotFound   = 4
	FatPathNotFound   = 5
	FatAccessDenied   = 7
	FatFileExists     = 8
	FatDirNotEmpty    = 9
	FatWriteProtected = 11
)

// FatText returns the fixed message for a device result code.
func FatText(code int) string {
	if code >= 0 && code < len(fatTexts) {
		return fatTexts[code]
	}
	return fmt.Sprintf("Unknown error %d", code)
}

// successCodes lists the non-zero device codes treated as success per
// command. delete tolerates 4 (file not found).
var successCodes = map[string][]int{
	"delete": {FatOK, FatFileNotFound},
}

// IsSuccessCode reports whether a device result code counts as success
// for the named command.
func IsSuccessCode(command string, code int) bool {
	if code == FatOK {
		return true
	}
	for _, c := range successCodes[command] {
		if c == code {
			return true
		}
	}
	return false
}

type Error struct {
	Code       ExitCode
	Category   string
	Message    string
	DeviceCode int
	Underlying error
	Suggestion string
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func New(code ExitCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func NewWithError(code ExitCode, message string, err error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
	}
}

func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	if wrapped, ok := err.(*Error); ok {
		return &Error{
			Code:       wrapped.Code,
			Category:   wrapped.Category,
			Message:    message + ": " + wrapped.Message,
			DeviceCode: wrapped.DeviceCode,
			Underlying: wrapped.Underlying,
			Suggestion: wrapped.Suggestion,
		}
	}

	return &Error{
		Code:       ExitCodeGeneral,
		Message:    message,
		Underlying: err,
	}
}

// Device builds the error for a non-success device result code.
func Device(code int) *Error {
	return &Error{
		Code:       ExitCodeDevice,
		Category:   deviceCategory(code),
		Message:    fmt.Sprintf("%s (device code %d)", FatText(code), code),
		DeviceCode: code,
	}
}

func deviceCategory(code int) string {
	text := FatText(code)
	slug := strings.ToLower(text)
	slug = strings.NewReplacer(" ", "_", "-", "_").Replace(slug)
	return "device." + slug
}

// IsDeviceCode reports whether err is a device error with the given code.
func IsDeviceCode(err error, code int) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == ExitCodeDevice && e.DeviceCode == code
	}
	return false
}

func NoOutput() *Error {
	return &Error{
		Code:       ExitCodeTransport,
		Category:   CategoryNoOutput,
		Message:    "no MIDI output attached",
		Suggestion: "Connect the Deluge over USB and check 'delctl config show' for the configured port name.",
	}
}

func Timeout(operation string) *Error {
	return &Error{
		Code:       ExitCodeTimeout,
		Category:   CategoryTimeout,
		Message:    fmt.Sprintf("timed out waiting for device reply: %s", operation),
		Suggestion: "The session has been reset. Retry the operation, or raise --timeout.",
	}
}

func FrameFormat(detail string) *Error {
	return &Error{
		Code:     ExitCodeTransport,
		Category: CategoryFrameFormat,
		Message:  fmt.Sprintf("malformed sysex frame: %s", detail),
	}
}

func UnexpectedReply(detail string) *Error {
	return &Error{
		Code:     ExitCodeTransport,
		Category: CategoryUnexpectedReply,
		Message:  fmt.Sprintf("unexpected device reply: %s", detail),
	}
}

func SessionNotOpened() *Error {
	return &Error{
		Code:     ExitCodeSession,
		Category: CategorySessionNotOpen,
		Message:  "no session open with the device",
	}
}

func SessionReset(cause error) *Error {
	return &Error{
		Code:       ExitCodeSession,
		Category:   CategorySessionReset,
		Message:    "session reset",
		Underlying: cause,
	}
}

func Cancelled(operation string) *Error {
	return &Error{
		Code:     ExitCodeCancellation,
		Category: CategoryCancelled,
		Message:  fmt.Sprintf("operation cancelled: %s", operation),
	}
}

func InvalidFilename(name string, reasons []string) *Error {
	return &Error{
		Code:       ExitCodeValidation,
		Category:   CategoryInvalidFilename,
		Message:    fmt.Sprintf("invalid filename %q: %s", name, strings.Join(reasons, "; ")),
		Suggestion: "Use --sanitize to rewrite the name automatically.",
	}
}

func PathTooLong(path string) *Error {
	return &Error{
		Code:     ExitCodeValidation,
		Category: CategoryPathTooLong,
		Message:  fmt.Sprintf("path exceeds 255 bytes: %q", path),
	}
}

func ConfigError(message string) *Error {
	return &Error{
		Code:       ExitCodeConfig,
		Category:   CategoryConfig,
		Message:    message,
		Suggestion: "Check your configuration file or run 'delctl config init'.",
	}
}

func ValidationError(message string) *Error {
	return &Error{
		Code:    ExitCodeValidation,
		Message: message,
	}
}

// IsCategory reports whether err carries the given stable category.
func IsCategory(err error, category string) bool {
	if e, ok := err.(*Error); ok {
		return e.Category == category
	}
	return false
}

func IsTimeout(err error) bool {
	return IsCategory(err, CategoryTimeout)
}

func IsCancelled(err error) bool {
	return IsCategory(err, CategoryCancelled)
}

func IsExitCode(err error, code ExitCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// HandleReturn logs an error, prints it to stderr, and returns the exit
// code. The caller is responsible for exiting the process.
func HandleReturn(err error) ExitCode {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitCode = ExitCodeGeneral
	var message string
	var suggestion string

	if e, ok := err.(*Error); ok {
		exitCode = e.Code
		message = e.Message
		suggestion = e.Suggestion

		if e.Underlying != nil {
			logger.Error().Err(e.Underlying).Str("category", e.Category).Msg(e.Message)
		} else {
			logger.Error().Str("category", e.Category).Msg(e.Message)
		}
	} else {
		message = err.Error()
		logger.Error().Msg(message)
	}

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(os.Stderr)
	red.Fprint(os.Stderr, "Error: ")
	fmt.Fprintln(os.Stderr, message)

	if suggestion != "" {
		yellow.Fprint(os.Stderr, "Suggestion: ")
		fmt.Fprintln(os.Stderr, suggestion)
	}

	fmt.Fprintln(os.Stderr)

	return exitCode
}

// Handle is HandleReturn followed by os.Exit.
func Handle(err error) {
	if err == nil {
		return
	}
	os.Exit(int(HandleReturn(err)))
}
