package wiring

import (
	"context"
	"fmt"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters/awsai"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters/httpai"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/adapters/mock"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts"
	artifactsRepository "github.com/amankumarsingh77/dubbing-pipeline/internal/artifacts/repository"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/jobkey"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/ledger"
	ledgerRepository "github.com/amankumarsingh77/dubbing-pipeline/internal/ledger/repository"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator"
	orchestratorUsecase "github.com/amankumarsingh77/dubbing-pipeline/internal/orchestrator/usecase"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/pipeline"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/db/aws"
	natsConn "github.com/amankumarsingh77/dubbing-pipeline/pkg/db/nats"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/db/postgres"
	redisConn "github.com/amankumarsingh77/dubbing-pipeline/pkg/db/redis"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/db/sqlite"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

const (
	migrateTimeout = 30 * time.Second
	awsCallTimeout = 2 * time.Minute
)

// Deps is the object graph shared by the binaries.
type Deps struct {
	Ledger   ledger.Ledger
	Gateway  *artifacts.Gateway
	Adapters *adapters.Set
	Engine   *pipeline.Engine
	UseCase  orchestrator.UseCase

	cfg     *config.Config
	logger  logger.Logger
	redis   *redis.Client
	nats    *nats.Conn
	js      nats.JetStreamContext
	ai      *aws.AIClients
	mock    *mock.Service
	closers []func() error
}

func Build(cfg *config.Config, log logger.Logger) (*Deps, error) {
	d := &Deps{cfg: cfg, logger: log}
	var err error

	if d.Ledger, err = d.buildLedger(); err != nil {
		d.Close()
		return nil, err
	}
	repo, err := d.buildStorage()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Gateway = artifacts.NewGateway(repo, log)

	set, err := d.buildAdapters()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Adapters = adapters.InstrumentSet(set)

	d.Engine = pipeline.NewEngine(&cfg.Pipeline, cfg.S3.OutputBucket, d.Ledger, d.Gateway, d.Adapters, log)
	d.UseCase = orchestratorUsecase.NewOrchestratorUseCase(jobkey.NewResolver(&cfg.Pipeline), d.Ledger, d.Gateway, d.Engine, log)
	return d, nil
}

// Redis returns the shared Redis client, connecting on first use.
func (d *Deps) Redis() (*redis.Client, error) {
	if d.redis != nil {
		return d.redis, nil
	}
	client, err := redisConn.NewRedisClient(d.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	d.redis = client
	d.closers = append(d.closers, client.Close)
	return client, nil
}

// Nats returns the shared NATS connection, connecting on first use.
func (d *Deps) Nats() (*nats.Conn, nats.JetStreamContext, error) {
	if d.nats != nil {
		return d.nats, d.js, nil
	}
	nc, js, err := natsConn.NewNatsConn(d.cfg)
	if err != nil {
		return nil, nil, err
	}
	d.nats, d.js = nc, js
	d.closers = append(d.closers, func() error {
		nc.Close()
		return nil
	})
	return nc, js, nil
}

func (d *Deps) buildLedger() (ledger.Ledger, error) {
	switch d.cfg.Ledger.Driver {
	case "postgres":
		db, err := postgres.NewPsqlDB(d.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return d.sqlLedger(db)
	case "sqlite":
		db, err := sqlite.NewSqliteDB(d.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return d.sqlLedger(db)
	case "redis":
		client, err := d.Redis()
		if err != nil {
			return nil, err
		}
		return ledgerRepository.NewRedisLedger(client), nil
	case "memory":
		d.logger.Warn("ledger is in memory; job state will not survive a restart")
		return ledgerRepository.NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", d.cfg.Ledger.Driver)
	}
}

func (d *Deps) sqlLedger(db *sqlx.DB) (ledger.Ledger, error) {
	d.closers = append(d.closers, db.Close)
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := ledgerRepository.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return ledgerRepository.NewSQLLedger(db), nil
}

func (d *Deps) buildStorage() (artifacts.Repository, error) {
	switch d.cfg.Storage.Driver {
	case "s3":
		client, err := aws.NewS3Client(d.cfg)
		if err != nil {
			return nil, err
		}
		return artifactsRepository.NewAwsRepository(client, d.cfg.S3.OutputBucket), nil
	case "nats":
		_, js, err := d.Nats()
		if err != nil {
			return nil, err
		}
		return artifactsRepository.NewNatsRepository(js, d.cfg.Nats.ObjectStoreBucket)
	case "memory":
		return artifactsRepository.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", d.cfg.Storage.Driver)
	}
}

func (d *Deps) aiClients() (*aws.AIClients, error) {
	if d.ai != nil {
		return d.ai, nil
	}
	clients, err := aws.NewAIClients(d.cfg)
	if err != nil {
		return nil, err
	}
	d.ai = clients
	return clients, nil
}

func (d *Deps) mockService() *mock.Service {
	if d.mock == nil {
		d.mock = mock.NewService()
	}
	return d.mock
}

func (d *Deps) buildAdapters() (*adapters.Set, error) {
	p := d.cfg.Providers
	set := &adapters.Set{}

	switch p.Transcription {
	case "aws":
		ai, err := d.aiClients()
		if err != nil {
			return nil, err
		}
		set.Transcription = awsai.NewTranscriber(ai.Transcribe, d.Gateway, d.cfg.S3.OutputBucket, d.cfg.Pipeline.TranscribeLanguageCode)
	case "whisper":
		set.Transcription = httpai.NewWhisperTranscriber(p.Whisper.BaseURL, p.Whisper.APIKey, p.Whisper.Model,
			d.cfg.Pipeline.SourceLanguage, seconds(p.Whisper.TimeoutSeconds), d.Gateway)
	default:
		set.Transcription = d.mockService().Set().Transcription
	}

	switch p.Translation {
	case "aws":
		ai, err := d.aiClients()
		if err != nil {
			return nil, err
		}
		set.Translation = awsai.NewTranslator(ai.Translate, awsCallTimeout)
	default:
		set.Translation = d.mockService().Set().Translation
	}

	switch p.Synthesis {
	case "aws":
		ai, err := d.aiClients()
		if err != nil {
			return nil, err
		}
		set.Synthesis = awsai.NewSynthesizer(ai.Polly, awsCallTimeout)
	case "http":
		set.Synthesis = httpai.NewTTSSynthesizer(p.TTS.BaseURL, seconds(p.TTS.TimeoutSeconds))
	default:
		set.Synthesis = d.mockService().Set().Synthesis
	}
	return set, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Close releases connections in reverse order of creation.
func (d *Deps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}
