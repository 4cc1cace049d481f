// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// HardwareSummary contains host information.
type HardwareSummary struct {
	Hostname string
	NumCPU   int
	OS       string
}

// InitializationSummary describes the source file before compression.
type InitializationSummary struct {
	InputFile   string
	OutputFile  string
	Duration    string
	Resolution  string
	Orientation int
	FrameRate   string
	Bitrate     string
	HasAudio    bool
}

// EncodingConfigSummary contains the resolved encode target.
type EncodingConfigSummary struct {
	Encoder    string
	Preset     string
	Quality    string
	Resolution string
	Bitrate    string
	FrameRate  string
	Audio      string
	Trim       string
}

// ProgressSnapshot contains encoding progress information.
type ProgressSnapshot struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	FPS          float32
	ETA          time.Duration
}

// CancelSummary describes a session stopped before finalization.
type CancelSummary struct {
	InputFile     string
	FramesWritten uint64
	TotalFrames   uint64
}

// ValidationSummary contains validation results.
type ValidationSummary struct {
	Passed bool
	Steps  []ValidationStep
}

// ValidationStep represents a single validation check.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// EncodingOutcome contains final encoding results.
type EncodingOutcome struct {
	InputFile    string
	OutputFile   string
	OriginalSize uint64
	EncodedSize  uint64
	Resolution   string
	Duration     string
	AudioStream  string
	TotalTime    time.Duration
	OutputPath   string
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo contains batch start metadata.
type BatchStartInfo struct {
	TotalFiles int
	FileList   []string
	OutputDir  string
}

// FileProgressContext contains current file index within a batch.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
}

// BatchSummary contains batch completion information.
type BatchSummary struct {
	SuccessfulCount       int
	CancelledCount        int
	TotalFiles            int
	TotalOriginalSize     uint64
	TotalEncodedSize      uint64
	TotalDuration         time.Duration
	FileResults           []FileResult
	ValidationPassedCount int
	ValidationFailedCount int
}

// FileResult contains per-file encoding result.
type FileResult struct {
	Filename  string
	Reduction float64
}

// StageProgress represents a generic stage update.
type StageProgress struct {
	Stage   string
	Percent float32
	Message string
	ETA     *time.Duration
}
