package nats

import (
	"fmt"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/nats-io/nats.go"
)

func NewNatsConn(cfg *config.Config) (*nats.Conn, nats.JetStreamContext, error) {
	url := cfg.Nats.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("dubbing-pipeline"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open jetstream context: %w", err)
	}
	return nc, js, nil
}
