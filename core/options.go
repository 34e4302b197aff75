package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type relayBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	signer           Signer
	signerFactory    SignerFactory
	deliverer        Deliverer
	delivererFactory DelivererFactory
	normalizer       *Normalizer
	idGenerator      func() string
	now              func() time.Time
}

type Option func(*relayBuilder)

func WithLogger(logger Logger) Option {
	return func(b *relayBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *relayBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *relayBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *relayBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *relayBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *relayBuilder) {
		b.optionsResolver = resolver
	}
}

// WithSigner sets the signer directly. It takes precedence over WithSignerFactory.
func WithSigner(signer Signer) Option {
	return func(b *relayBuilder) {
		b.signer = signer
	}
}

// WithSignerFactory builds the signer from the resolved config.
func WithSignerFactory(factory SignerFactory) Option {
	return func(b *relayBuilder) {
		b.signerFactory = factory
	}
}

// WithDeliverer sets the delivery client directly. It takes precedence over
// WithDelivererFactory.
func WithDeliverer(deliverer Deliverer) Option {
	return func(b *relayBuilder) {
		b.deliverer = deliverer
	}
}

func WithDelivererFactory(factory DelivererFactory) Option {
	return func(b *relayBuilder) {
		b.delivererFactory = factory
	}
}

func WithNormalizer(normalizer *Normalizer) Option {
	return func(b *relayBuilder) {
		b.normalizer = normalizer
	}
}

// WithDeliveryIDGenerator overrides the per request delivery id source.
func WithDeliveryIDGenerator(generator func() string) Option {
	return func(b *relayBuilder) {
		b.idGenerator = generator
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *relayBuilder) {
		b.now = now
	}
}

func defaultRelayBuilder(runtime Config) relayBuilder {
	return relayBuilder{
		runtimeConfig:   runtime,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		normalizer:      defaultNormalizer,
		idGenerator:     uuid.NewString,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return relayErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw config map.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes the raw values over defaults. Validation is deferred to the
// options resolver because runtime values may still fill required fields.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setString("service_name", cfg.ServiceName)
	setString("target_url", cfg.TargetURL)
	setString("events_path", cfg.EventsPath)
	setString("secret", cfg.Secret)
	setString("signature_header", cfg.SignatureHeader)
	setString("signature_scheme", cfg.SignatureScheme)
	setString("delivery_id_header", cfg.DeliveryIDHeader)
	if includeZero || cfg.Timeout > 0 {
		layer["timeout"] = cfg.Timeout
	}
	if includeZero || cfg.MaxResponseBodyBytes > 0 {
		layer["max_response_body_bytes"] = cfg.MaxResponseBodyBytes
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.MaxRetries > 0 {
		retry["max_retries"] = cfg.Retry.MaxRetries
	}
	if includeZero || cfg.Retry.WaitMin > 0 {
		retry["wait_min"] = cfg.Retry.WaitMin
	}
	if includeZero || cfg.Retry.WaitMax > 0 {
		retry["wait_max"] = cfg.Retry.WaitMax
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}
	return layer
}
