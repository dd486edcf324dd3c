package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/the-hive/segmenter/internal/classify"
	"github.com/the-hive/segmenter/internal/logger"
)

const notRequiredWarning = "OCR not required for this type"

var errUnknownEngine = errors.New("unknown engine")

// Router runs engines in priority order until one succeeds.
type Router struct {
	engines map[string]Engine
	log     *logger.Logger
}

// NewRouter creates a router over the given engines, keyed by Name().
func NewRouter(log *logger.Logger, engines ...Engine) *Router {
	if log == nil {
		log = logger.GetDefault()
	}
	r := &Router{engines: make(map[string]Engine, len(engines)), log: log}
	for _, e := range engines {
		r.engines[e.Name()] = e
	}
	return r
}

// Route recognizes the file at path. Types that need no OCR return an empty,
// error-free result immediately. Otherwise every engine in cfg priority order
// is tried with its own deadline; failures are recorded as
// "<engine>_failed:<reason>" warnings ahead of the winning engine's own.
func (r *Router) Route(ctx context.Context, path string, refined classify.RefinedType, cfg Config) Result {
	priority := cfg.priority()

	if !refined.RequiresOCR() {
		return Result{Engine: priority[0], Warnings: []string{notRequiredWarning}}
	}

	var (
		failures []string
		lastErr  string
	)
	for _, name := range priority {
		res, err := r.invoke(ctx, name, path, cfg)
		if err == nil {
			res.Engine = name
			res.Error = ""
			res.Warnings = append(append([]string{}, failures...), res.Warnings...)
			r.log.Printf("Route: path=%s engine=%s pages=%d attempts=%d", path, name, res.PagesProcessed, len(failures)+1)
			return res
		}

		lastErr = err.Error()
		failures = append(failures, fmt.Sprintf("%s_failed:%s", name, lastErr))

		var ef *EngineFailure
		if errors.As(err, &ef) && len(ef.Warnings) > 0 {
			r.log.Warnf("Route: path=%s engine=%s failed: %s (diagnostics: %v)", path, name, lastErr, ef.Warnings)
		} else {
			r.log.Warnf("Route: path=%s engine=%s failed: %s", path, name, lastErr)
		}
	}

	if lastErr == "" {
		lastErr = ErrAllEnginesFailed.Error()
	}
	return Result{Engine: priority[0], Warnings: failures, Error: lastErr}
}

type outcome struct {
	res Result
	err error
}

// invoke runs one engine under the configured deadline. A timed-out engine
// is abandoned; its goroutine finishes into a buffered channel nobody reads.
func (r *Router) invoke(ctx context.Context, name, path string, cfg Config) (Result, error) {
	engine, ok := r.engines[name]
	if !ok {
		return Result{}, &EngineFailure{Engine: name, Message: errUnknownEngine.Error(), Err: errUnknownEngine}
	}

	timeout := time.Duration(cfg.timeoutSec()) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: &EngineFailure{Engine: name, Message: fmt.Sprintf("panic: %v", p)}}
			}
		}()
		res, err := engine.Recognize(callCtx, path, cfg)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-callCtx.Done():
		// Prefer a result that landed at the deadline.
		select {
		case o := <-done:
			return o.res, o.err
		default:
		}
		if ctx.Err() != nil {
			return Result{}, failure(name, ctx.Err())
		}
		return Result{}, &EngineFailure{
			Engine:  name,
			Message: fmt.Sprintf("timeout after %ds", cfg.timeoutSec()),
			Err:     context.DeadlineExceeded,
		}
	}
}
