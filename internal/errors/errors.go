// Package errors provides structured error types for videocompress operations.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindIO represents I/O errors.
	KindIO ErrorKind = iota
	// KindCommand represents external command execution errors.
	KindCommand
	// KindFFmpeg represents FFmpeg-specific errors.
	KindFFmpeg
	// KindFFprobeParse represents FFprobe output parsing errors.
	KindFFprobeParse
	// KindNoVideoTrack represents a source without a decodable video track.
	KindNoVideoTrack
	// KindConfig represents configuration validation errors.
	KindConfig
	// KindOperationFailed represents general operation failures.
	KindOperationFailed
	// KindCancelled represents cancelled operations.
	KindCancelled
	// KindSessionBusy represents a compression request made while another is in flight.
	KindSessionBusy
	// KindSessionNotFound represents a lookup of an unknown session id.
	KindSessionNotFound
	// KindNotImplemented represents an unrecognized method call.
	KindNotImplemented
	// KindInvalidArgument represents a missing or malformed call argument.
	KindInvalidArgument
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindCommand:
		return "Command error"
	case KindFFmpeg:
		return "FFmpeg error"
	case KindFFprobeParse:
		return "FFprobe parse error"
	case KindNoVideoTrack:
		return "No video track"
	case KindConfig:
		return "Configuration error"
	case KindOperationFailed:
		return "Operation failed"
	case KindCancelled:
		return "Operation cancelled"
	case KindSessionBusy:
		return "Session busy"
	case KindSessionNotFound:
		return "Session not found"
	case KindNotImplemented:
		return "Not implemented"
	case KindInvalidArgument:
		return "Invalid argument"
	default:
		return "Unknown error"
	}
}

// Code returns the short machine-readable code used in call failure payloads.
func (k ErrorKind) Code() string {
	switch k {
	case KindIO:
		return "io_error"
	case KindCommand:
		return "command_error"
	case KindFFmpeg:
		return "ffmpeg_error"
	case KindFFprobeParse:
		return "ffprobe_parse_error"
	case KindNoVideoTrack:
		return "no_video_track"
	case KindConfig:
		return "config_error"
	case KindCancelled:
		return "cancelled"
	case KindSessionBusy:
		return "session_busy"
	case KindSessionNotFound:
		return "session_not_found"
	case KindNotImplemented:
		return "not_implemented"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "operation_failed"
	}
}

// CommandErrorKind represents the type of command error.
type CommandErrorKind int

const (
	// CommandStart means the command failed to start.
	CommandStart CommandErrorKind = iota
	// CommandWait means waiting for the command failed.
	CommandWait
	// CommandFailed means the command returned non-zero exit status.
	CommandFailed
)

// CommandError represents an error from executing an external command.
type CommandError struct {
	Command    string
	Kind       CommandErrorKind
	ExitCode   int
	Stderr     string
	Underlying error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case CommandStart:
		return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Underlying)
	case CommandWait:
		return fmt.Sprintf("failed to wait for %s: %v", e.Command, e.Underlying)
	case CommandFailed:
		if e.Stderr != "" {
			return fmt.Sprintf("command %s failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("command %s failed with exit code %d", e.Command, e.ExitCode)
	default:
		return fmt.Sprintf("command %s error: %v", e.Command, e.Underlying)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Underlying
}

// CoreError is the main error type for videocompress operations.
type CoreError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target matches this error's kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewCommandError creates a new command execution error.
func NewCommandError(cmd string, kind CommandErrorKind, underlying error) *CoreError {
	cmdErr := &CommandError{
		Command:    cmd,
		Kind:       kind,
		Underlying: underlying,
	}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewCommandStartError creates an error for when a command fails to start.
func NewCommandStartError(cmd string, err error) *CoreError {
	return NewCommandError(cmd, CommandStart, err)
}

// NewCommandWaitError creates an error for when waiting for a command fails.
func NewCommandWaitError(cmd string, err error) *CoreError {
	return NewCommandError(cmd, CommandWait, err)
}

// NewCommandFailedError creates an error for when a command returns non-zero exit status.
func NewCommandFailedError(cmd string, exitCode int, stderr string) *CoreError {
	cmdErr := &CommandError{
		Command:  cmd,
		Kind:     CommandFailed,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewFFmpegError creates a new FFmpeg-specific error.
func NewFFmpegError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindFFmpeg, Message: message, Underlying: underlying}
}

// NewFFprobeParseError creates a new FFprobe parsing error.
func NewFFprobeParseError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindFFprobeParse, Message: message, Underlying: underlying}
}

// NewNoVideoTrackError creates an error for a source without a video track.
func NewNoVideoTrackError(path string) *CoreError {
	return &CoreError{Kind: KindNoVideoTrack, Message: fmt.Sprintf("failed to get video track in %s", path)}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message, Underlying: underlying}
}

// NewOperationFailedError creates a new general operation failure error.
func NewOperationFailedError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindOperationFailed, Message: message, Underlying: underlying}
}

// NewCancelledError creates an error for cancelled operations.
func NewCancelledError() *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "operation was cancelled"}
}

// NewSessionBusyError creates an error for overlapping compression requests.
func NewSessionBusyError(active int) *CoreError {
	return &CoreError{Kind: KindSessionBusy, Message: fmt.Sprintf("%d compression session(s) already in flight", active)}
}

// NewSessionNotFoundError creates an error for an unknown session id.
func NewSessionNotFoundError(id string) *CoreError {
	return &CoreError{Kind: KindSessionNotFound, Message: fmt.Sprintf("no session with id %s", id)}
}

// NewNotImplementedError creates an error for an unrecognized method name.
func NewNotImplementedError(method string) *CoreError {
	return &CoreError{Kind: KindNotImplemented, Message: fmt.Sprintf("method %q is not implemented", method)}
}

// NewInvalidArgumentError creates an error for a bad call argument.
func NewInvalidArgumentError(name, message string) *CoreError {
	return &CoreError{Kind: KindInvalidArgument, Message: fmt.Sprintf("%s: %s", name, message)}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of the outermost CoreError in err's chain.
// Errors that are not CoreErrors report KindOperationFailed.
func KindOf(err error) ErrorKind {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind
	}
	return KindOperationFailed
}

// IsCancelled checks if the error is a cancellation error.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// IsNoVideoTrack checks if the error reports a missing video track.
func IsNoVideoTrack(err error) bool {
	return IsKind(err, KindNoVideoTrack)
}

// WrapExecError wraps an exec.ExitError into a CoreError.
func WrapExecError(cmd string, err error, stderr string) *CoreError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewCommandFailedError(cmd, exitErr.ExitCode(), stderr)
	}
	return NewCommandStartError(cmd, err)
}
