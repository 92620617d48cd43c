// Package limits approves invocations against call quotas, a per-tool rate
// limit and per-field argument policies.
package limits

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codex-k8s/tool-batch-server/internal/runtime/approver"
)

// runIdle is how long per-run counters survive without use.
const runIdle = time.Hour

// Options configures a limits approver.
type Options struct {
	// MaxTotal caps calls per tool, or per tool and run with PerRun.
	MaxTotal int
	// RatePerMinute caps calls per tool per minute.
	RatePerMinute int
	// PerRun scopes MaxTotal to one batch run (correlation id).
	PerRun bool
	// Fields validates arguments by name.
	Fields map[string]FieldPolicy
}

// FieldPolicy describes validation rules for a single field.
type FieldPolicy struct {
	Regex     string
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
}

type counter struct {
	count    int
	lastUsed time.Time
}

// Store keeps counters, limiters and compiled field policies.
type Store struct {
	name     string
	opts     Options
	compiled map[string]*regexp.Regexp

	mu       sync.Mutex
	counts   map[string]*counter
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewApprover creates a limits approver and compiles regex rules.
func NewApprover(name string, opts Options) (*Store, error) {
	compiled := make(map[string]*regexp.Regexp, len(opts.Fields))
	for field, policy := range opts.Fields {
		if policy.Regex == "" {
			continue
		}
		re, err := regexp.Compile(policy.Regex)
		if err != nil {
			return nil, fmt.Errorf("invalid regex for field %s: %w", field, err)
		}
		compiled[field] = re
	}
	return &Store{
		name:     name,
		opts:     opts,
		compiled: compiled,
		counts:   make(map[string]*counter),
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}, nil
}

// Name returns approver name for audit and logging.
func (s *Store) Name() string {
	if s.name != "" {
		return s.name
	}
	return "limits"
}

func (s *Store) deny(format string, args ...any) approver.Decision {
	return approver.Decision{Allowed: false, Reason: fmt.Sprintf(format, args...), Source: s.Name()}
}

// Approve checks fields first, then quota, then rate. Only approved calls
// are counted.
func (s *Store) Approve(_ context.Context, req approver.Request) (approver.Decision, error) {
	if err := s.checkFields(req.Arguments); err != nil {
		return s.deny("%s", err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := s.counter(req, now)
	if s.opts.MaxTotal > 0 && c.count >= s.opts.MaxTotal {
		if s.opts.PerRun {
			return s.deny("maximum of %d calls per run exceeded", s.opts.MaxTotal), nil
		}
		return s.deny("maximum of %d calls exceeded", s.opts.MaxTotal), nil
	}
	if limiter := s.limiter(req.ToolName); limiter != nil && !limiter.AllowN(now, 1) {
		return s.deny("rate limit of %d calls per minute exceeded", s.opts.RatePerMinute), nil
	}

	c.count++
	c.lastUsed = now
	return approver.Decision{Allowed: true, Reason: "approved", Source: s.Name()}, nil
}

func (s *Store) counter(req approver.Request, now time.Time) *counter {
	key := req.ToolName
	if s.opts.PerRun {
		key = req.CorrelationID + "/" + req.ToolName
		for k, c := range s.counts {
			if now.Sub(c.lastUsed) > runIdle {
				delete(s.counts, k)
			}
		}
	}
	c := s.counts[key]
	if c == nil {
		c = &counter{lastUsed: now}
		s.counts[key] = c
	}
	return c
}

func (s *Store) limiter(tool string) *rate.Limiter {
	if s.opts.RatePerMinute <= 0 {
		return nil
	}
	limiter := s.limiters[tool]
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.opts.RatePerMinute)), s.opts.RatePerMinute)
		s.limiters[tool] = limiter
	}
	return limiter
}

func (s *Store) checkFields(args map[string]any) error {
	for field, policy := range s.opts.Fields {
		value, ok := args[field]
		if !ok {
			continue
		}
		if str, isString := value.(string); isString {
			if err := s.checkString(field, str, policy); err != nil {
				return err
			}
			continue
		}
		num, isNumber := toFloat(value)
		if !isNumber {
			continue
		}
		if policy.Min != nil && num < *policy.Min {
			return fmt.Errorf("field %s is below minimum %v", field, *policy.Min)
		}
		if policy.Max != nil && num > *policy.Max {
			return fmt.Errorf("field %s is above maximum %v", field, *policy.Max)
		}
	}
	return nil
}

func (s *Store) checkString(field, value string, policy FieldPolicy) error {
	if policy.MinLength != nil && len(value) < *policy.MinLength {
		return fmt.Errorf("field %s is shorter than %d", field, *policy.MinLength)
	}
	if policy.MaxLength != nil && len(value) > *policy.MaxLength {
		return fmt.Errorf("field %s is longer than %d", field, *policy.MaxLength)
	}
	if re := s.compiled[field]; re != nil && !re.MatchString(value) {
		return fmt.Errorf("field %s does not match required format", field)
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
