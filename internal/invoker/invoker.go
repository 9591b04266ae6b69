// Package invoker sends a bound prompt to a backend and retries until the response parses
// into at least one record.
package invoker

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"sftgen/internal/models"
	"sftgen/internal/parser"
	"sftgen/internal/providers"
	"sftgen/internal/util"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultMaxRetries = 3
	DefaultInterval   = time.Second
	// NoInterval retries immediately.
	NoInterval time.Duration = -1
)

// AuditSink receives one row per backend attempt. Errors from the sink are logged, never fatal.
type AuditSink interface {
	RecordCall(ctx context.Context, call models.LLMCall) error
}

type Options struct {
	// MaxRetries is the total number of attempts, not the number of retries after the first.
	MaxRetries int
	// Interval is the wait between failed attempts. Zero means DefaultInterval; NoInterval
	// (any negative value) disables the wait.
	Interval    time.Duration
	Temperature float64
	Model       string
	Audit       AuditSink
}

// Unit identifies what an Invoke call is working on, for audit rows and log lines.
type Unit struct {
	RunID string
	File  string
	Index int
}

type Result struct {
	Records  []string
	Attempts int
	Err      error
}

func (r Result) Empty() bool { return len(r.Records) == 0 }

type Invoker struct {
	provider providers.LLMProvider
	opts     Options

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func New(provider providers.LLMProvider, opts Options) *Invoker {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	switch {
	case opts.Interval == 0:
		opts.Interval = DefaultInterval
	case opts.Interval < 0:
		opts.Interval = 0
	}
	return &Invoker{
		provider: provider,
		opts:     opts,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

func (v *Invoker) MaxRetries() int { return v.opts.MaxRetries }

// Invoke runs up to MaxRetries attempts. An attempt fails on a backend error, an empty response,
// a parse error or zero records. The invoker sleeps Interval between failed attempts but not after
// the last one. When every attempt fails the result carries no records and an error wrapping
// util.ErrEmptyResult.
func (v *Invoker) Invoke(ctx context.Context, prompt string, p parser.Parser, unit Unit) Result {
	var lastErr error
	promptHash := util.SHA256Hex([]byte(prompt))
	for attempt := 1; attempt <= v.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempt - 1, Err: err}
		}
		records, info, latency, err := v.attempt(ctx, prompt, p)
		v.audit(ctx, unit, p.Stage(), attempt, info, latency, promptHash, err)
		if err == nil {
			return Result{Records: records, Attempts: attempt}
		}
		lastErr = err
		log.Printf("invoke failed stage=%s file=%s unit=%d attempt=%d/%d err=%v",
			p.Stage(), unit.File, unit.Index, attempt, v.opts.MaxRetries, err)
		if attempt == v.opts.MaxRetries {
			break
		}
		if err := sleep(ctx, v.opts.Interval); err != nil {
			return Result{Attempts: attempt, Err: err}
		}
	}
	return Result{
		Attempts: v.opts.MaxRetries,
		Err:      fmt.Errorf("%w after %d attempts: %v", util.ErrEmptyResult, v.opts.MaxRetries, lastErr),
	}
}

func (v *Invoker) attempt(ctx context.Context, prompt string, p parser.Parser) ([]string, providers.ProviderInfo, time.Duration, error) {
	opts := map[string]any{providers.OptTemperature: v.opts.Temperature}
	if v.opts.Model != "" {
		opts[providers.OptModel] = v.opts.Model
	}
	start := time.Now()
	resp, info, err := v.provider.Generate(ctx, providers.GenerateRequest{
		Operation: string(p.Stage()),
		Prompt:    prompt,
		Options:   opts,
	})
	latency := time.Since(start)
	if err != nil {
		return nil, info, latency, fmt.Errorf("%w: %v", util.ErrBackend, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, info, latency, fmt.Errorf("%w: empty response", util.ErrBackend)
	}
	records, err := p.Parse(resp.Text)
	if err != nil {
		return nil, info, latency, err
	}
	if len(records) == 0 {
		return nil, info, latency, fmt.Errorf("%w: no records in response", util.ErrParse)
	}
	return records, info, latency, nil
}

func (v *Invoker) audit(ctx context.Context, unit Unit, stage models.Stage, attempt int, info providers.ProviderInfo, latency time.Duration, promptHash string, callErr error) {
	if v.opts.Audit == nil {
		return
	}
	call := models.LLMCall{
		CallID:       v.newCallID(),
		RunID:        unit.RunID,
		Stage:        stage,
		File:         unit.File,
		Unit:         unit.Index,
		Attempt:      attempt,
		ProviderName: info.Name,
		Model:        info.Model,
		Status:       "ok",
		LatencyMS:    latency.Milliseconds(),
		PromptHash:   promptHash,
	}
	if callErr != nil {
		call.Status = "error"
		call.ErrorType = string(providers.ClassifyError(callErr))
	}
	if err := v.opts.Audit.RecordCall(ctx, call); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("audit write failed call_id=%s err=%v", call.CallID, err)
	}
}

func (v *Invoker) newCallID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ulid.MustNew(ulid.Now(), v.entropy).String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LogAudit writes audit rows as log lines when no database is configured.
type LogAudit struct{}

func (LogAudit) RecordCall(ctx context.Context, call models.LLMCall) error {
	_ = ctx
	log.Printf("llm call call_id=%s stage=%s file=%s unit=%d attempt=%d provider=%s model=%s status=%s error_type=%s latency_ms=%d",
		call.CallID, call.Stage, call.File, call.Unit, call.Attempt, call.ProviderName, call.Model, call.Status, call.ErrorType, call.LatencyMS)
	return nil
}
