package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Postgres  DBConfig
	Sqlite    SqliteConfig
	Redis     RedisConfig
	S3        S3Config
	AWS       AWSConfig
	Nats      NatsConfig
	Logger    Logger
	Worker    WorkerConfig
	Ledger    LedgerConfig
	Storage   StorageConfig
	Trigger   TriggerConfig
	Providers ProvidersConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	AppVersion   string
	Port         string `validate:"required"`
	Mode         string
	JwtSecretKey string
	ReadTimeout  int
	WriteTimeout int
}

type WorkerConfig struct {
	WorkerCount int `validate:"gte=1"`
	MaxCPUUsage float64
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	PgDriver string
	SSLMode  string
}

type SqliteConfig struct {
	Path string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	UseTLS        bool
	JobQueueKey   string
}

type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	InputBucket  string
	OutputBucket string
}

// AWSConfig holds credentials for the AI services. Empty keys fall back to the
// default credential chain.
type AWSConfig struct {
	Region    string
	AccessKey string
	SecretKey string
}

type NatsConfig struct {
	URL               string
	Subject           string
	QueueGroup        string
	ObjectStoreBucket string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

type LedgerConfig struct {
	Driver string `validate:"oneof=postgres sqlite redis memory"`
}

type StorageConfig struct {
	Driver string `validate:"oneof=s3 nats memory"`
}

type TriggerConfig struct {
	Source string `validate:"oneof=nats redis"`
}

type ProvidersConfig struct {
	Transcription string `validate:"oneof=aws whisper mock"`
	Translation   string `validate:"oneof=aws mock"`
	Synthesis     string `validate:"oneof=aws http mock"`
	Whisper       HTTPProviderConfig
	TTS           HTTPProviderConfig
}

type HTTPProviderConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

type PipelineConfig struct {
	InputPrefix            string   `validate:"required"`
	TargetLanguages        []string `validate:"required,min=1,dive,required"`
	VoiceMapping           map[string]string
	DefaultEnvironment     string   `validate:"required"`
	KnownEnvironments      []string
	SourceLanguage         string `validate:"required"`
	TranscribeLanguageCode string `validate:"required"`
	MaxAttempts            int    `validate:"gte=1"`
	PollBudgetMs           int    `validate:"gte=1"`
	PollIntervalMs         int    `validate:"gte=1"`
	BackoffBaseMs          int    `validate:"gte=1"`
	BackoffMaxMs           int    `validate:"gtefield=BackoffBaseMs"`
	LeaseMs                int    `validate:"gte=1"`
	WorkerCount            int    `validate:"gte=1"`
}

// VoiceFor looks a voice up by language. Viper lower-cases map keys, so the
// lookup ignores case.
func (p *PipelineConfig) VoiceFor(lang string) (string, bool) {
	if v, ok := p.VoiceMapping[lang]; ok {
		return v, true
	}
	for k, v := range p.VoiceMapping {
		if strings.EqualFold(k, lang) {
			return v, true
		}
	}
	return "", false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":5000")
	v.SetDefault("server.mode", "Development")
	v.SetDefault("server.readTimeout", 10)
	v.SetDefault("server.writeTimeout", 10)
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.level", "info")
	v.SetDefault("worker.workerCount", 2)
	v.SetDefault("worker.maxCPUUsage", 90)
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("sqlite.path", "ledger.db")
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("trigger.source", "redis")
	v.SetDefault("redis.jobQueueKey", "dubbing:notifications")
	v.SetDefault("nats.subject", "dubbing.notifications")
	v.SetDefault("nats.queueGroup", "dubbing-workers")
	v.SetDefault("nats.objectStoreBucket", "dubbing-artifacts")
	v.SetDefault("providers.transcription", "aws")
	v.SetDefault("providers.translation", "aws")
	v.SetDefault("providers.synthesis", "aws")
	v.SetDefault("providers.whisper.model", "whisper-1")
	v.SetDefault("providers.whisper.timeoutSeconds", 300)
	v.SetDefault("providers.tts.timeoutSeconds", 120)
	v.SetDefault("pipeline.inputPrefix", "audio_inputs")
	v.SetDefault("pipeline.targetLanguages", []string{"es", "fr", "de"})
	v.SetDefault("pipeline.voiceMapping", map[string]string{"es": "Lucia", "fr": "Celine", "de": "Vicki"})
	v.SetDefault("pipeline.defaultEnvironment", "prod")
	v.SetDefault("pipeline.knownEnvironments", []string{"beta", "prod"})
	v.SetDefault("pipeline.sourceLanguage", "en")
	v.SetDefault("pipeline.transcribeLanguageCode", "en-US")
	v.SetDefault("pipeline.maxAttempts", 3)
	v.SetDefault("pipeline.pollBudgetMs", 600000)
	v.SetDefault("pipeline.pollIntervalMs", 5000)
	v.SetDefault("pipeline.backoffBaseMs", 1000)
	v.SetDefault("pipeline.backoffMaxMs", 60000)
	v.SetDefault("pipeline.leaseMs", 300000)
	v.SetDefault("pipeline.workerCount", 4)
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("pipeline.defaultEnvironment", "ENV_PREFIX")
	_ = v.BindEnv("s3.outputBucket", "OUTPUT_BUCKET")
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, lang := range c.Pipeline.TargetLanguages {
		if _, ok := c.Pipeline.VoiceFor(lang); !ok {
			return fmt.Errorf("invalid config: no voice mapping for target language %q", lang)
		}
	}
	return nil
}
