package sequence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"seqgen/internal/core/apperror"
	"seqgen/internal/core/pattern"
	"seqgen/internal/core/variable"
	"seqgen/pkg/logger"
)

var tracer = otel.Tracer("seqgen/sequence")

// Hooks receives generation outcomes for metrics collection.
type Hooks interface {
	ObserveGeneration(scope, name string, err error, elapsed time.Duration)
}

type nopHooks struct{}

func (nopHooks) ObserveGeneration(string, string, error, time.Duration) {}

// Service orchestrates identifier generation: validate pattern, resolve
// counter state, atomically increment, render, emit event. The service is
// stateless and safe for arbitrary caller concurrency; serialization per
// (scope, name) happens inside the CounterStore.
type Service struct {
	store     CounterStore
	evaluator *pattern.Evaluator
	publisher EventPublisher
	hooks     Hooks
	log       *logger.Logger

	// autoProvision creates missing counter state on first use instead of
	// failing with SEQUENCE_NOT_FOUND.
	autoProvision bool
}

// Option configures the Service.
type Option func(*Service)

// WithPublisher wires an event publisher for SequenceGenerated events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithAutoProvision enables lazy creation of counter state on first use.
func WithAutoProvision() Option {
	return func(s *Service) { s.autoProvision = true }
}

// WithHooks wires a metrics observer.
func WithHooks(h Hooks) Option {
	return func(s *Service) { s.hooks = h }
}

// WithLogger overrides the default logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates the generation service over a counter store and a
// variable registry.
func NewService(store CounterStore, registry *variable.Registry, opts ...Option) *Service {
	s := &Service{
		store:     store,
		evaluator: pattern.NewEvaluator(registry),
		publisher: NopPublisher{},
		hooks:     nopHooks{},
		log:       logger.Default().WithComponent("sequence"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces the next identifier for the sequence. Strictly ordered:
// validation (no store access), state resolution, atomic reset+increment,
// rendering, event emission. Any failure before the increment leaves all
// state untouched; failures after it degrade rather than lose the consumed
// counter.
func (s *Service) Generate(ctx context.Context, cfg Config, genCtx Context, now time.Time) (result *GeneratedNumber, err error) {
	ctx, span := tracer.Start(ctx, "sequence.generate")
	span.SetAttributes(
		attribute.String("sequence.scope", cfg.Scope),
		attribute.String("sequence.name", cfg.Name),
	)
	defer span.End()

	start := time.Now()
	defer func() { s.hooks.ObserveGeneration(cfg.Scope, cfg.Name, err, time.Since(start)) }()

	tpl, err := s.validate(cfg, genCtx)
	if err != nil {
		return nil, err
	}

	if err = s.ensureProvisioned(ctx, cfg); err != nil {
		return nil, err
	}

	st, err := s.store.LockAndIncrement(ctx, cfg, now)
	if err != nil {
		if !apperror.IsAppError(err) {
			err = apperror.NewCounterIncrement(err)
		}
		return nil, err
	}

	n := &GeneratedNumber{
		Counter:     st.Value,
		GeneratedAt: now,
	}

	// The counter is consumed at this point. Rendering failures degrade to
	// the fallback format instead of losing it.
	value, renderErr := s.evaluator.Render(tpl, pattern.Input{
		Counter: st.Value,
		Padding: cfg.Padding,
		Now:     now,
		Context: genCtx,
	})
	if renderErr != nil {
		value = fallbackValue(cfg, st.Value, now)
		n.Metadata = map[string]string{"fallback": "true"}
		s.log.WithContext(ctx).Warnw("render failed after counter consumption, using fallback value",
			"scope", cfg.Scope,
			"sequence", cfg.Name,
			"counter", st.Value,
			"error", renderErr,
		)
	}
	n.Value = value

	if pubErr := s.publisher.Publish(ctx, NewGeneratedEvent(cfg, n)); pubErr != nil {
		// At-least-once is the delivery property; the increment stands.
		s.log.WithContext(ctx).Warnw("event publish failed",
			"scope", cfg.Scope,
			"sequence", cfg.Name,
			"counter", st.Value,
			"error", pubErr,
		)
	}

	return n, nil
}

// Preview renders the identifier the next Generate call would produce
// without consuming the counter. Two previews are not guaranteed to agree if
// another generation lands in between.
func (s *Service) Preview(ctx context.Context, cfg Config, genCtx Context, now time.Time) (*GeneratedNumber, error) {
	tpl, err := s.validate(cfg, genCtx)
	if err != nil {
		return nil, err
	}

	st, err := s.store.GetCurrentState(ctx, cfg)
	if err != nil {
		if apperror.IsSequenceNotFound(err) && s.autoProvision {
			st = CounterState{}
		} else {
			return nil, err
		}
	}

	next := st.Value + cfg.StepSize
	if ShouldReset(cfg, st, now) {
		next = cfg.StepSize
	}

	value, err := s.evaluator.Render(tpl, pattern.Input{
		Counter: next,
		Padding: cfg.Padding,
		Now:     now,
		Context: genCtx,
	})
	if err != nil {
		return nil, err
	}

	return &GeneratedNumber{
		Value:       value,
		Counter:     next,
		GeneratedAt: now,
		Metadata:    map[string]string{"is_preview": "true"},
	}, nil
}

// ValidateConfig checks the config invariants and the pattern structure
// without requiring a generation context. Used at provisioning and on
// administrative updates.
func (s *Service) ValidateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	tpl, err := pattern.ParseCached(cfg.Pattern)
	if err != nil {
		return err
	}
	return s.evaluator.ValidateStructure(tpl)
}

// Provision validates the config and creates counter state for it. Returns a
// CONFLICT error when the sequence already exists.
func (s *Service) Provision(ctx context.Context, cfg Config) error {
	if err := s.ValidateConfig(cfg); err != nil {
		return err
	}

	created, err := s.store.Create(ctx, cfg)
	if err != nil {
		return err
	}
	if !created {
		return apperror.NewDuplicate("sequence", "name", cfg.Name).
			WithDetail("scope", cfg.Scope)
	}

	s.log.WithContext(ctx).Infow("sequence provisioned",
		"scope", cfg.Scope,
		"sequence", cfg.Name,
		"pattern", cfg.Pattern,
	)
	return nil
}

// Peek returns the current counter state without locking or mutating.
func (s *Service) Peek(ctx context.Context, cfg Config) (CounterState, error) {
	return s.store.GetCurrentState(ctx, cfg)
}

// SetCounter overwrites the counter value. Administrative surface for
// migrating sequences from a legacy system.
func (s *Service) SetCounter(ctx context.Context, cfg Config, value int64) error {
	if value < 0 {
		return apperror.NewValidation("counter value must not be negative").WithDetail("value", value)
	}
	if err := s.store.SetCounter(ctx, cfg, value); err != nil {
		return err
	}
	s.log.WithContext(ctx).Infow("counter overridden",
		"scope", cfg.Scope,
		"sequence", cfg.Name,
		"value", value,
	)
	return nil
}

// validate runs the fail-fast phase: config invariants, pattern parse,
// evaluator validation. No store access happens here.
func (s *Service) validate(cfg Config, genCtx Context) (*pattern.Template, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, apperror.NewSequenceDisabled(cfg.Scope, cfg.Name)
	}
	tpl, err := pattern.ParseCached(cfg.Pattern)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.Validate(tpl, genCtx); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *Service) ensureProvisioned(ctx context.Context, cfg Config) error {
	exists, err := s.store.Exists(ctx, cfg)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if !s.autoProvision {
		return apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	// Concurrent creators are fine: Create reports false when the row
	// already landed.
	if _, err := s.store.Create(ctx, cfg); err != nil {
		return err
	}
	return nil
}

// fallbackValue is the documented degraded format used when rendering fails
// after the counter was consumed: NAME-YYYY-counter.
func fallbackValue(cfg Config, counter int64, now time.Time) string {
	return fmt.Sprintf("%s-%04d-%0*d", strings.ToUpper(cfg.Name), now.Year(), cfg.Padding, counter)
}
