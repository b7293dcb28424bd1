package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"creator-auth/internal/bucketing"
	"creator-auth/internal/client"
	"creator-auth/internal/clock"
	"creator-auth/internal/config"
	"creator-auth/internal/devotp"
	"creator-auth/internal/encryption"
	"creator-auth/internal/events"
	"creator-auth/internal/model"
	"creator-auth/internal/notify"
	"creator-auth/internal/otp"
	"creator-auth/internal/repository/memory"
	redisrepo "creator-auth/internal/repository/redis"
	"creator-auth/internal/repository/scylla"
	"creator-auth/internal/service"
	"creator-auth/internal/session"
	"creator-auth/internal/tls"
	"creator-auth/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	clock      clock.Clock
	tlsManager *tls.Manager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	store     model.CommitmentStore
	limiter   model.AttemptLimiter
	sender    notify.CodeSender
	publisher *events.Publisher

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory resolves secrets, connects the configured backends and assembles the
// services. A *config.ConfigurationError from secret resolution is returned unchanged.
func NewFactory(cfg *config.Config) (*Factory, error) {
	f := &Factory{
		config: cfg,
		clock:  clock.System{},
		closed: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.KMS.Enabled {
		if err := f.resolveSecrets(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewManager(cfg)
	}

	if err := f.initializeStore(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize commitment store: %w", err)
	}

	if err := f.initializeMessaging(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize messaging: %w", err)
	}

	if err := f.initializeServices(); err != nil {
		f.Close()
		return nil, err
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store_backend", cfg.Store.Backend),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("kafka_enabled", f.kafkaProducer != nil),
	)

	return f, nil
}

func (f *Factory) resolveSecrets(ctx context.Context) error {
	kmsClient, err := encryption.NewKMSClient(ctx, f.config.KMS)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	return encryption.NewSecretResolver(kmsClient, f.config.KMS.KeyID).Resolve(ctx, f.config)
}

// initializeStore connects the backend named by STORE_BACKEND. The Scylla backend keeps
// attempt counters in Redis when it is reachable.
func (f *Factory) initializeStore(ctx context.Context) error {
	switch f.config.Store.Backend {
	case "memory":
		util.Warn("Using in-memory commitment store; codes do not survive a restart")
		f.store = memory.NewCommitmentStore()
		f.limiter = memory.NewAttemptLimiter(f.clock)
		return nil

	case "redis":
		rc, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = rc
		f.store = redisrepo.NewCommitmentStore(rc)
		f.limiter = redisrepo.NewAttemptLimiter(rc)

	case "scylla":
		sc, err := scylla.NewScyllaClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("scylla: %w", err)
		}
		f.scyllaClient = sc
		f.store = scylla.NewCommitmentRepository(sc)

		rc, err := client.NewRedisClient(f.config, util.Get())
		switch {
		case err == nil:
			f.redisClient = rc
			f.limiter = redisrepo.NewAttemptLimiter(rc)
		case f.config.IsProduction():
			return fmt.Errorf("redis attempt limiter: %w", err)
		default:
			util.Warn("Redis unavailable; counting verify attempts in memory", util.ErrorField(err))
			f.limiter = memory.NewAttemptLimiter(f.clock)
		}

	default:
		return &config.ConfigurationError{Reason: fmt.Sprintf("unknown STORE_BACKEND %q", f.config.Store.Backend)}
	}

	return f.store.HealthCheck(ctx)
}

// initializeMessaging sets up OTP delivery and the audit event sinks. Optional sinks that
// fail to connect are fatal in production and skipped elsewhere.
func (f *Factory) initializeMessaging(ctx context.Context) error {
	var (
		sinks      []events.Sink
		initErrors []error
	)

	if f.config.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			initErrors = append(initErrors, fmt.Errorf("kafka: %w", err))
		} else {
			f.kafkaProducer = producer
			f.sender = notify.NewKafkaSender(producer, f.config.Kafka.OTPTopic)
			sinks = append(sinks, events.NewKafkaSink(producer, f.config.Kafka.EventsTopic))
		}
	}
	if f.sender == nil {
		util.Warn("Kafka delivery disabled; OTP codes are only logged as issued")
		f.sender = notify.LogSender{}
	}

	if f.config.Elasticsearch.Enabled {
		es, err := client.NewElasticsearchClient(f.config, util.Get())
		if err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = es
			sinks = append(sinks, events.NewElasticsearchSink(es, es.Index()))
		}
	}

	if f.config.Clickhouse.Enabled {
		ch, err := client.NewClickHouseClient(f.config, util.Get())
		if err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = ch
			sinks = append(sinks, events.NewClickHouseSink(ch))
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %w", errors.Join(initErrors...))
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	f.publisher = events.NewPublisher(bucketing.NewManager(bucketing.DefaultEventBuckets), f.clock, sinks...)
	return nil
}

func (f *Factory) initializeServices() error {
	auth := f.config.Auth

	signer, err := session.NewSigner(session.Config{
		Secret: auth.SessionSecret,
		TTL:    auth.SessionTTL,
		Issuer: auth.SessionIssuer,
		Clock:  f.clock,
	})
	if err != nil {
		return err
	}

	devCache := devotp.New(devotp.Options{
		Production: f.config.IsProduction(),
		Window:     f.config.DevOTP.Window,
		Clock:      f.clock,
	})

	f.serviceFactory = service.NewServiceFactory(service.Dependencies{
		Store:    f.store,
		Limiter:  f.limiter,
		Hasher:   otp.NewHasher(auth.OTPSecret),
		Signer:   signer,
		Sender:   f.sender,
		DevCache: devCache,
		Users:    service.NewEmailUserResolver(),
		Events:   f.publisher,
		Clock:    f.clock,
		Settings: service.Settings{
			OTPTTL:            auth.OTPTTL,
			ResendInterval:    auth.ResendInterval,
			MaxVerifyAttempts: auth.MaxVerifyAttempts,
			PreviewBaseURL:    f.config.DevOTP.PreviewBaseURL,
		},
	}, util.Get())

	_, err = f.serviceFactory.AuthService()
	return err
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.store != nil {
		if err := f.store.HealthCheck(ctx); err != nil {
			healthErrors["store"] = err
		}
	} else {
		healthErrors["store"] = errors.New("commitment store not initialized")
	}
	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(ctx); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	return healthErrors
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			_ = f.clickhouseClient.Close()
		}
		if f.esClient != nil {
			f.esClient.Close()
		}
		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	return f.serviceFactory
}
