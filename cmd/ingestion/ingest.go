package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/worker"
	natsConn "github.com/amankumarsingh77/dubbing-pipeline/pkg/db/nats"
	redisConn "github.com/amankumarsingh77/dubbing-pipeline/pkg/db/redis"
	"github.com/spf13/cobra"
)

type IngestOptions struct {
	ConfigPath  string
	Bucket      string
	Key         string
	Environment string
	Languages   []string
	Target      string
	Wait        time.Duration
}

func DefaultIngestOptions() *IngestOptions {
	return &IngestOptions{
		ConfigPath: "config.yml",
		Target:     "redis",
	}
}

// NewIngestionCommand publishes a synthetic objectCreated notification onto the
// worker's trigger transport.
func NewIngestionCommand() *cobra.Command {
	o := DefaultIngestOptions()
	cmd := &cobra.Command{
		Use:          "ingestion",
		Short:        "Publish an objectCreated notification for an uploaded audio file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&o.ConfigPath, "config", o.ConfigPath, "Path to the pipeline config file")
	flags.StringVar(&o.Bucket, "bucket", "", "Bucket holding the audio file (defaults to s3.inputBucket)")
	flags.StringVar(&o.Key, "key", "", "Object key of the audio file")
	flags.StringVar(&o.Environment, "env", "", "Environment override carried as event metadata")
	flags.StringSliceVar(&o.Languages, "langs", nil, "Target language override, comma separated")
	flags.StringVar(&o.Target, "target", o.Target, "Trigger transport: redis or nats")
	flags.DurationVar(&o.Wait, "wait", 0, "With nats, wait this long for the worker's reply")
	return cmd
}

func (o *IngestOptions) Validate() error {
	if strings.TrimSpace(o.Key) == "" {
		return fmt.Errorf("--key is required")
	}
	if o.Target != "redis" && o.Target != "nats" {
		return fmt.Errorf("--target must be redis or nats, got %q", o.Target)
	}
	return nil
}

func (o *IngestOptions) Run(ctx context.Context) error {
	cfgFile, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("loadConfig: %w", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("parseConfig: %w", err)
	}

	payload, err := o.payload(cfg)
	if err != nil {
		return err
	}

	if o.Target == "nats" {
		return o.publishNats(cfg, payload)
	}
	client, err := redisConn.NewRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer client.Close()
	if err := worker.Enqueue(ctx, client, cfg.Redis.JobQueueKey, payload); err != nil {
		return err
	}
	fmt.Printf("Queued %s on %s\n", o.Key, cfg.Redis.JobQueueKey)
	return nil
}

func (o *IngestOptions) payload(cfg *config.Config) ([]byte, error) {
	bucket := o.Bucket
	if bucket == "" {
		bucket = cfg.S3.InputBucket
	}
	n := &models.Notification{ArtifactEvent: models.ArtifactEvent{
		Bucket:          bucket,
		Key:             o.Key,
		EventType:       models.EventObjectCreated,
		Environment:     o.Environment,
		TargetLanguages: o.Languages,
	}}
	return json.Marshal(n)
}

func (o *IngestOptions) publishNats(cfg *config.Config, payload []byte) error {
	nc, _, err := natsConn.NewNatsConn(cfg)
	if err != nil {
		return err
	}
	defer nc.Close()

	if o.Wait <= 0 {
		if err := nc.Publish(cfg.Nats.Subject, payload); err != nil {
			return err
		}
		if err := nc.Flush(); err != nil {
			return err
		}
		fmt.Printf("Published %s on %s\n", o.Key, cfg.Nats.Subject)
		return nil
	}
	msg, err := nc.Request(cfg.Nats.Subject, payload, o.Wait)
	if err != nil {
		return fmt.Errorf("no reply from worker: %w", err)
	}
	fmt.Println(string(msg.Data))
	return nil
}
