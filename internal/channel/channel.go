// Package channel dispatches named method calls with loosely typed
// arguments onto the compressor, the way a host UI drives the library.
package channel

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
	"github.com/five82/videocompress/internal/metrics"
	"github.com/five82/videocompress/internal/reporter"
)

// Method names understood by Handle.
const (
	MethodGetByteThumbnail  = "getByteThumbnail"
	MethodGetFileThumbnail  = "getFileThumbnail"
	MethodGetMediaInfo      = "getMediaInfo"
	MethodCompressVideo     = "compressVideo"
	MethodCancelCompression = "cancelCompression"
	MethodDeleteAllCache    = "deleteAllCache"
	MethodSetLogLevel       = "setLogLevel"

	// MethodUpdateProgress is invoked on the host with the percentage as a
	// decimal string.
	MethodUpdateProgress = "updateProgress"
)

// ErrNotImplemented matches the error returned for unknown methods.
var ErrNotImplemented error = errors.NewNotImplementedError("")

// MethodCall is one incoming call.
type MethodCall struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments"`
}

// Failure is the error payload returned to the host.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// FailureFrom converts err into a host payload.
func FailureFrom(err error) Failure {
	f := Failure{Code: errors.KindOf(err).Code(), Message: err.Error()}
	var ce *errors.CommandError
	if stderrors.As(err, &ce) {
		f.Details = map[string]any{
			"command":   ce.Command,
			"exit_code": ce.ExitCode,
			"stderr":    ce.Stderr,
		}
	}
	return f
}

// Invoker calls methods back on the host.
type Invoker interface {
	InvokeMethod(method string, arguments any)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(method string, arguments any)

// InvokeMethod calls f.
func (f InvokerFunc) InvokeMethod(method string, arguments any) {
	f(method, arguments)
}

// Service is the library surface the channel dispatches to.
type Service interface {
	GetByteThumbnail(ctx context.Context, path string, quality int, position float64) ([]byte, error)
	GetFileThumbnail(ctx context.Context, path string, quality int, position float64) (string, error)
	GetMediaInfo(ctx context.Context, path string) (*media.MediaInfo, error)
	CompressVideoWithReporter(ctx context.Context, req media.CompressionRequest, rep reporter.Reporter) (*media.MediaInfo, error)
	CancelCompression() int
	DeleteAllCache() error
}

// Handler dispatches method calls to a Service.
type Handler struct {
	svc     Service
	invoker Invoker
}

// NewHandler creates a Handler. invoker may be nil when the host does not
// want progress callbacks.
func NewHandler(svc Service, invoker Invoker) *Handler {
	return &Handler{svc: svc, invoker: invoker}
}

// Handle runs one call and returns its result. Unknown methods fail with
// a not implemented error.
func (h *Handler) Handle(ctx context.Context, call MethodCall) (any, error) {
	start := time.Now()
	result, err := h.dispatch(ctx, call)

	code := "ok"
	if err != nil {
		code = errors.KindOf(err).Code()
		logging.Debug("Method call failed", "method", call.Method, "error", err)
	}
	method := call.Method
	if errors.IsKind(err, errors.KindNotImplemented) {
		method = "unknown"
	}
	metrics.CallsTotal.WithLabelValues(method, code).Inc()
	metrics.CallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	return result, err
}

func (h *Handler) dispatch(ctx context.Context, call MethodCall) (any, error) {
	args := Args(call.Arguments)

	switch call.Method {
	case MethodGetByteThumbnail:
		path, quality, position, err := thumbnailArgs(args)
		if err != nil {
			return nil, err
		}
		data, err := h.svc.GetByteThumbnail(ctx, path, quality, position)
		if err != nil || data == nil {
			return nil, err
		}
		return data, nil

	case MethodGetFileThumbnail:
		path, quality, position, err := thumbnailArgs(args)
		if err != nil {
			return nil, err
		}
		out, err := h.svc.GetFileThumbnail(ctx, path, quality, position)
		if err != nil || out == "" {
			return nil, err
		}
		return out, nil

	case MethodGetMediaInfo:
		path, err := args.String("path")
		if err != nil {
			return nil, err
		}
		info, err := h.svc.GetMediaInfo(ctx, path)
		if err != nil || info == nil {
			return nil, err
		}
		return encodeInfo(info)

	case MethodCompressVideo:
		req, err := compressionRequest(args)
		if err != nil {
			return nil, err
		}
		info, err := h.svc.CompressVideoWithReporter(ctx, req, h.progressReporter())
		if err != nil {
			return nil, err
		}
		return encodeInfo(info)

	case MethodCancelCompression:
		h.svc.CancelCompression()
		return "", nil

	case MethodDeleteAllCache:
		if err := h.svc.DeleteAllCache(); err != nil {
			return nil, err
		}
		return true, nil

	case MethodSetLogLevel:
		level, err := args.String("logLevel")
		if err != nil {
			return nil, err
		}
		if err := logging.SetLevel(level); err != nil {
			return nil, errors.NewInvalidArgumentError("logLevel", err.Error())
		}
		return true, nil

	default:
		return nil, errors.NewNotImplementedError(call.Method)
	}
}

func (h *Handler) progressReporter() reporter.Reporter {
	if h.invoker == nil {
		return nil
	}
	return reporter.NewProgressFunc(func(p reporter.ProgressSnapshot) {
		h.invoker.InvokeMethod(MethodUpdateProgress, FormatPercent(p.Percent))
	})
}

// FormatPercent renders a progress percentage for the host.
func FormatPercent(p float32) string {
	return strconv.FormatFloat(float64(p), 'f', -1, 32)
}

func thumbnailArgs(args Args) (path string, quality int, position float64, err error) {
	if path, err = args.String("path"); err != nil {
		return
	}
	if quality, err = args.Int("quality"); err != nil {
		return
	}
	position, err = args.Float("position")
	return
}

func compressionRequest(args Args) (media.CompressionRequest, error) {
	var req media.CompressionRequest
	var err error

	if req.Path, err = args.String("path"); err != nil {
		return req, err
	}
	if req.Quality, err = args.Int("quality"); err != nil {
		return req, err
	}
	if req.DeleteOriginal, err = args.Bool("deleteOrigin"); err != nil {
		return req, err
	}
	if req.StartTime, err = args.OptionalFloat("startTime"); err != nil {
		return req, err
	}
	if req.Duration, err = args.OptionalFloat("duration"); err != nil {
		return req, err
	}
	if req.IncludeAudio, err = args.OptionalBool("includeAudio"); err != nil {
		return req, err
	}
	if req.FrameRate, err = args.OptionalInt("frameRate"); err != nil {
		return req, err
	}
	if req.Bitrate, err = args.OptionalInt("bitRate"); err != nil {
		return req, err
	}
	return req, nil
}

func encodeInfo(info *media.MediaInfo) (string, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return "", errors.NewOperationFailedError("failed to encode media info", err)
	}
	return string(data), nil
}
