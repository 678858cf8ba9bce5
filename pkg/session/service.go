package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// QueueSize is the number of pending updates buffered before new ones are
	// dropped.
	// Default: 4096.
	QueueSize int

	// WriteTimeout bounds each store write.
	// Default: 2 seconds.
	WriteTimeout time.Duration

	// TTL is how long an idle session stays tracked. Zero disables pruning.
	// Default: 24 hours.
	TTL time.Duration

	// PruneInterval is how often entries older than TTL are removed.
	// Default: 10 minutes.
	PruneInterval time.Duration

	// Logger receives store errors. Default: slog.Default().
	Logger *slog.Logger

	// Registerer registers the service metrics. Nil disables registration.
	Registerer prometheus.Registerer

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// DefaultServiceConfig returns a ServiceConfig with sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		QueueSize:     4096,
		WriteTimeout:  2 * time.Second,
		TTL:           24 * time.Hour,
		PruneInterval: 10 * time.Minute,
		Now:           time.Now,
	}
}

type update struct {
	id mongoid.ID
	at time.Time
}

type serviceMetrics struct {
	recorded prometheus.Counter
	dropped  prometheus.Counter
	errors   prometheus.Counter
}

// Service records session activity without blocking callers.
type Service struct {
	store   Store
	config  ServiceConfig
	updates chan update
	logger  *slog.Logger
	metrics serviceMetrics

	running   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewService creates a Service writing to store. Call Run to start the
// background writer.
func NewService(store Store, config ServiceConfig) *Service {
	defaults := DefaultServiceConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PruneInterval == 0 {
		config.PruneInterval = defaults.PruneInterval
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registerer := config.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)

	return &Service{
		store:   store,
		config:  config,
		updates: make(chan update, config.QueueSize),
		logger:  logger.With("component", "session_activity"),
		metrics: serviceMetrics{
			recorded: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "spt",
				Subsystem: "session",
				Name:      "activity_recorded_total",
				Help:      "Session activity updates written to the store",
			}),
			dropped: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "spt",
				Subsystem: "session",
				Name:      "activity_dropped_total",
				Help:      "Session activity updates dropped because the queue was full",
			}),
			errors: factory.NewCounter(prometheus.CounterOpts{
				Namespace: "spt",
				Subsystem: "session",
				Name:      "activity_errors_total",
				Help:      "Session activity store errors",
			}),
		},
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// RecordActivity enqueues an activity timestamp for id. It never blocks;
// when the queue is full the update is dropped.
func (s *Service) RecordActivity(id mongoid.ID) {
	if id.IsEmpty() {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.updates <- update{id: id, at: s.config.Now()}:
	default:
		s.metrics.dropped.Inc()
	}
}

// GetActivityTimestamp returns when id was last seen.
func (s *Service) GetActivityTimestamp(ctx context.Context, id mongoid.ID) (time.Time, bool, error) {
	return s.store.GetActivity(ctx, id)
}

// ActiveSessions lists sessions seen within the last window.
func (s *Service) ActiveSessions(ctx context.Context, window time.Duration) ([]mongoid.ID, error) {
	return s.store.ActiveSince(ctx, s.config.Now().Add(-window))
}

// Run drains the update queue until ctx is done or Close is called. Pending
// updates are flushed before returning.
func (s *Service) Run(ctx context.Context) {
	s.running.Store(true)
	defer close(s.stopped)

	var prune <-chan time.Time
	if s.config.TTL > 0 {
		ticker := time.NewTicker(s.config.PruneInterval)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case u := <-s.updates:
			s.write(u)
		case <-prune:
			s.prune()
		case <-ctx.Done():
			s.flush()
			return
		case <-s.done:
			s.flush()
			return
		}
	}
}

// Close stops Run after flushing queued updates and closes the store.
// It waits for Run to return only if Run was started.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	if s.running.Load() {
		select {
		case <-s.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		s.flush()
	}
	return s.store.Close()
}

func (s *Service) flush() {
	for {
		select {
		case u := <-s.updates:
			s.write(u)
		default:
			return
		}
	}
}

func (s *Service) write(u update) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	if err := s.store.SetActivity(ctx, u.id, u.at); err != nil {
		s.metrics.errors.Inc()
		s.logger.Warn("activity write failed", "session_id", u.id, "error", err)
		return
	}
	s.metrics.recorded.Inc()
}

func (s *Service) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	if err := s.store.Prune(ctx, s.config.Now().Add(-s.config.TTL)); err != nil {
		s.metrics.errors.Inc()
		s.logger.Warn("activity prune failed", "error", err)
	}
}
