package fleetclient

import (
	"errors"
	"log/slog"

	"github.com/printfleet/fleetclient/internal/events"
	"github.com/printfleet/fleetclient/querycache"
	"github.com/printfleet/fleetclient/tokenstore"
	"github.com/printfleet/fleetclient/transport"
)

// Builder assembles a Client. Configure it fluently, then call Build once.
type Builder struct {
	config Config
	tokens tokenstore.Store
	sink   EventSink
	logger *slog.Logger

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL overrides only the backend address, leaving the rest of the
// configuration untouched.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

func (b *Builder) WithTokenStore(store tokenstore.Store) *Builder {
	b.tokens = store
	return b
}

func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens := b.tokens
	if tokens == nil {
		if cfg.Storage.TokenPath == "" {
			return nil, errors.New("token store required")
		}
		tokens = tokenstore.NewFile(cfg.Storage.TokenPath)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	api, err := transport.New(transport.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
	}, tokens, logger)
	if err != nil {
		return nil, err
	}

	client := &Client{
		cfg:     cfg,
		tokens:  tokens,
		api:     api,
		cache:   querycache.New(),
		metrics: NewMetrics(cfg.Metrics.Enabled),
		logger:  logger,
		state:   SessionBooting,
	}

	client.events = events.NewDispatcher(events.Config{
		Enabled:    cfg.Events.Enabled,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.sink)

	api.SetInvalidationHook(client.handleInvalidated)

	b.built = true
	return client, nil
}
