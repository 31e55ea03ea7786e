package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultMaxAttempts is the number of schema-constrained attempts before
// falling back to free text.
const DefaultMaxAttempts = 3

// Validator is implemented by output types with checks beyond struct tags.
type Validator interface {
	Validate() error
}

// Structured produces schema-conformant values from a Provider, retrying with
// exponential backoff and repairing malformed free-text output as a last resort.
type Structured struct {
	provider    Provider
	maxAttempts int
	validate    *validator.Validate
	logger      *zap.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewStructured creates a Structured client. maxAttempts <= 0 uses DefaultMaxAttempts.
func NewStructured(p Provider, maxAttempts int, logger *zap.Logger) *Structured {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Structured{
		provider:    p,
		maxAttempts: maxAttempts,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff returns the wait after the given 1-based failed attempt: 2^attempt seconds.
func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// Generate fills out (a non-nil pointer) with a value that matches req.Schema
// and passes validation.
//
// It makes up to maxAttempts schema-constrained calls, sleeping 2^attempt
// seconds between them. If all fail, it makes one free-text call asking for
// JSON only and tries each repair candidate in order. If nothing validates,
// the last schema-constrained error is returned.
func (s *Structured) Generate(ctx context.Context, req Request, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("generate %s: out must be a non-nil pointer", req.Schema.Name)
	}

	var structErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		raw, err := s.provider.GenerateObject(ctx, req)
		if err == nil {
			if err = s.decode(raw, out); err == nil {
				return nil
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		structErr = err
		s.logger.Warn("structured generation attempt failed",
			zap.String("schema", req.Schema.Name),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < s.maxAttempts {
			if err := s.sleep(ctx, backoff(attempt)); err != nil {
				return err
			}
		}
	}

	if s.fallback(ctx, req, out) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("generate %s: %w", req.Schema.Name, structErr)
}

func (s *Structured) fallback(ctx context.Context, req Request, out any) bool {
	text, err := s.provider.GenerateText(ctx, fallbackSystem(req), req.Prompt)
	if err != nil {
		s.logger.Warn("free-text fallback failed", zap.String("schema", req.Schema.Name), zap.Error(err))
		return false
	}

	for _, r := range Repairs {
		candidate, ok := r.Fn(text)
		if !ok {
			continue
		}
		if err := s.decode(json.RawMessage(candidate), out); err != nil {
			s.logger.Debug("repair candidate rejected",
				zap.String("schema", req.Schema.Name),
				zap.String("repair", r.Name),
				zap.Error(err))
			continue
		}
		s.logger.Info("recovered output from free text",
			zap.String("schema", req.Schema.Name),
			zap.String("repair", r.Name))
		return true
	}
	return false
}

func fallbackSystem(req Request) string {
	return req.System + "\n\nRespond with a single JSON object only. Do not use markdown fences " +
		"and do not add any text before or after the object. The object must match this JSON Schema:\n" +
		req.Schema.String()
}

// decode unmarshals raw into a fresh value of out's element type, validates
// it, and only then stores it in out.
func (s *Structured) decode(raw json.RawMessage, out any) error {
	elem := reflect.ValueOf(out).Elem()
	fresh := reflect.New(elem.Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := s.check(fresh.Interface()); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	elem.Set(fresh.Elem())
	return nil
}

func (s *Structured) check(v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		if err := s.validate.Struct(rv.Interface()); err != nil {
			return err
		}
	case reflect.Map:
		if rv.IsNil() {
			return errors.New("null object")
		}
		iter := rv.MapRange()
		for iter.Next() {
			val := reflect.Indirect(iter.Value())
			if val.Kind() != reflect.Struct {
				continue
			}
			if err := s.validate.Struct(val.Interface()); err != nil {
				return fmt.Errorf("%v: %w", iter.Key(), err)
			}
		}
	}
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}
