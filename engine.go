package authedge

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/authedge/authedge/internal/rate"
	"github.com/authedge/authedge/metrics"
	"github.com/authedge/authedge/session"
)

// Unlimited disables a fixed-window counter when used as its maximum.
const Unlimited = rate.Unlimited

// Engine is the authentication engine. It owns the session lifecycle,
// the failed-login lockout controller, and the emailed one-time code
// flows. Build one with [New]; a built engine is safe for concurrent
// use.
type Engine struct {
	config   Config
	log      *zap.Logger
	sessions *session.Manager
	store    *session.Store
	attempts *rate.Counter
	codes    *codeStore
	accounts AccountStore
	mailer   Mailer
	events   EventPublisher
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Builder assembles an [Engine]. Zero or one call per With method, then
// [Builder.Build].
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	accounts AccountStore
	mailer   Mailer
	events   EventPublisher
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the seeded configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the Redis client backing sessions, counters, and
// one-time codes. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore supplies the credential backend. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithMailer supplies the code delivery channel. Optional; without one
// the engine issues codes but cannot deliver them.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithEventPublisher supplies the lifecycle event channel. Optional.
func (b *Builder) WithEventPublisher(p EventPublisher) *Builder {
	b.events = p
	return b
}

// WithLogger supplies the structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithMetrics supplies the Prometheus metric set. Optional.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// WithClock overrides the engine's time source. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher := session.NewHasher([]byte(b.config.Session.TokenSecret))
	store := session.NewStore(b.redis, hasher, b.config.Session.KeyPrefix, b.config.Session.AccountKeyPrefix)
	manager := session.NewManager(store, b.config.Session.TTL, b.config.Session.HardTTL, b.config.Session.MaxPerAccount, now)

	engine := &Engine{
		config:   b.config,
		log:      log,
		sessions: manager,
		store:    store,
		attempts: rate.NewCounter(b.redis),
		codes:    newCodeStore(b.redis, now),
		accounts: b.accounts,
		mailer:   b.mailer,
		events:   b.events,
		metrics:  b.metrics,
		now:      now,
	}
	manager.OnEvict(func(*session.Session) {
		engine.metricInc(func(m *metrics.Metrics) { m.SessionsEvicted.Inc() })
	})

	b.built = true
	return engine, nil
}

func (e *Engine) metricInc(inc func(m *metrics.Metrics)) {
	if e.metrics != nil {
		inc(e.metrics)
	}
}
