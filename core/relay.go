package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Relay is the dispatch coordinator. Each Handle call runs its own
// normalize, sign and deliver pipeline; the only state shared between calls
// is the read-only config and the injected collaborators.
type Relay struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	signer          Signer
	deliverer       Deliverer
	normalizer      *Normalizer
	idGenerator     func() string
	now             func() time.Time
}

func NewRelay(cfg Config, opts ...Option) (*Relay, error) {
	builder := defaultRelayBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("auth-relay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("auth-relay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.normalizer == nil {
		builder.normalizer = defaultNormalizer
	}
	if builder.idGenerator == nil {
		builder.idGenerator = uuid.NewString
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, wrapConfigurationError(err, "core: load config"))
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, wrapConfigurationError(err, "core: resolve config"))
	}

	signer := builder.signer
	if signer == nil && builder.signerFactory != nil {
		signer, err = builder.signerFactory(finalConfig)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, wrapConfigurationError(err, "core: build signer"))
		}
	}
	if signer == nil {
		return nil, mapBuildError(builder.errorMapper, ConfigurationError("core: signer is required"))
	}

	deliverer := builder.deliverer
	if deliverer == nil && builder.delivererFactory != nil {
		deliverer, err = builder.delivererFactory(finalConfig)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, wrapConfigurationError(err, "core: build deliverer"))
		}
	}
	if deliverer == nil {
		return nil, mapBuildError(builder.errorMapper, ConfigurationError("core: deliverer is required"))
	}

	return &Relay{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		signer:          signer,
		deliverer:       deliverer,
		normalizer:      builder.normalizer,
		idGenerator:     builder.idGenerator,
		now:             builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Relay, error) {
	return NewRelay(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// Config returns a copy of the resolved configuration.
func (r *Relay) Config() Config {
	if r == nil {
		return Config{}
	}
	return r.config
}

// Attach registers the relay as the handler of source.
func (r *Relay) Attach(source EventSource) error {
	if r == nil {
		return ConfigurationError("core: relay is not configured")
	}
	if source == nil {
		return ConfigurationError("core: event source is required")
	}
	return source.Register(r)
}

func (r *Relay) OnCreate(ctx context.Context, user UserRecord) (Result, error) {
	return r.Handle(ctx, CreatedEvent(user))
}

func (r *Relay) OnUpdate(ctx context.Context, before UserRecord, after UserRecord) (Result, error) {
	return r.Handle(ctx, UpdatedEvent(before, after))
}

func (r *Relay) OnDelete(ctx context.Context, user UserRecord) (Result, error) {
	return r.Handle(ctx, DeletedEvent(user))
}

// Handle runs one event through normalize -> sign -> deliver. Every path ends
// in StateSucceeded or StateFailed and the returned error is non-nil iff the
// state is StateFailed.
func (r *Relay) Handle(ctx context.Context, raw RawEvent) (result Result, err error) {
	if r == nil || r.signer == nil || r.deliverer == nil {
		err = ConfigurationError("core: relay is not configured")
		return Result{State: StateFailed, Stage: StageNormalize, Kind: raw.Kind, Reason: err}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := r.now()
	fields := map[string]any{
		"signature_scheme": r.signer.Scheme(),
	}
	if changed := ChangedFields(raw); len(changed) > 0 {
		fields["changed_fields"] = joinFields(changed)
	}
	result = Result{Kind: raw.Kind, Stage: StageNormalize}
	defer func() {
		r.observeEvent(ctx, startedAt, result, err, fields)
	}()

	var (
		event  LifecycleEvent
		signed SignedRequest
	)
	for {
		switch result.Stage {
		case StageNormalize:
			event, err = r.normalizer.Normalize(raw)
			if err != nil {
				return failed(result, err)
			}
			result.UserID = event.UserID
			result.Stage = StageSign
		case StageSign:
			signed, err = r.sign(event)
			if err != nil {
				return failed(result, err)
			}
			result.DeliveryID = signed.DeliveryID
			result.Stage = StageDeliver
		case StageDeliver:
			outcome := r.deliverer.Deliver(ctx, r.config.DeliveryURL(), signed, r.deliveryOptions())
			result.Outcome = outcome
			if !outcome.Delivered() {
				return failed(result, OutcomeError(outcome))
			}
			result.State = StateSucceeded
			result.Stage = StageDone
			result.Response = outcome.Response
			return result, nil
		default:
			return failed(result, internalError(
				fmt.Errorf("unexpected stage %q", result.Stage),
				"core: relay pipeline reached an invalid stage",
			))
		}
	}
}

func failed(result Result, err error) (Result, error) {
	result.State = StateFailed
	result.Reason = err
	return result, err
}

func (r *Relay) sign(event LifecycleEvent) (SignedRequest, error) {
	body, err := BuildPayload(event).Marshal()
	if err != nil {
		return SignedRequest{}, internalError(err, "core: encode outgoing payload")
	}
	signature, err := r.signer.Sign(body)
	if err != nil {
		return SignedRequest{}, wrapConfigurationError(err, "core: sign outgoing payload")
	}
	if strings.TrimSpace(signature) == "" {
		return SignedRequest{}, ConfigurationError("core: signer returned an empty token")
	}
	return SignedRequest{
		Payload:    body,
		Signature:  signature,
		DeliveryID: r.idGenerator(),
	}, nil
}

func (r *Relay) deliveryOptions() DeliveryOptions {
	return DeliveryOptions{
		Timeout:          r.config.Timeout,
		SignatureHeader:  r.config.SignatureHeader,
		DeliveryIDHeader: r.config.DeliveryIDHeader,
	}
}

var (
	_ Handler = (*Relay)(nil)
)
