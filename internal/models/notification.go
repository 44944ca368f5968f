package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const EventObjectCreated = "objectCreated"

// ArtifactEvent is one normalized "object changed" notification.
type ArtifactEvent struct {
	Bucket          string   `json:"bucket" validate:"required"`
	Key             string   `json:"key" validate:"required"`
	EventType       string   `json:"eventType" validate:"required"`
	Environment     string   `json:"environment,omitempty"`
	TargetLanguages []string `json:"targetLanguages,omitempty"`
	ETag            string   `json:"eTag,omitempty"`
	VersionID       string   `json:"versionId,omitempty"`
	Sequencer       string   `json:"sequencer,omitempty"`
	Fingerprint     string   `json:"fingerprint,omitempty"`
}

func (e *ArtifactEvent) Locator() Locator {
	return Locator{Bucket: e.Bucket, Key: e.Key}
}

// Notification is the raw inbound payload. It is either an S3 event document
// (Records) or a single flat event.
type Notification struct {
	Records []S3EventRecord `json:"Records,omitempty"`
	ArtifactEvent
}

type S3EventRecord struct {
	EventSource string `json:"eventSource"`
	EventName   string `json:"eventName"`
	S3          struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key       string `json:"key"`
			Size      int64  `json:"size"`
			ETag      string `json:"eTag"`
			VersionID string `json:"versionId"`
			Sequencer string `json:"sequencer"`
		} `json:"object"`
	} `json:"s3"`
}

func ParseNotification(data []byte) (*Notification, error) {
	n := &Notification{}
	if err := json.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return n, nil
}

// Events flattens the notification into events. S3 object keys arrive
// form-encoded and are decoded here; S3 "ObjectCreated:*" names map to objectCreated.
func (n *Notification) Events() ([]ArtifactEvent, error) {
	if len(n.Records) == 0 {
		if n.Key == "" && n.Bucket == "" {
			return nil, nil
		}
		return []ArtifactEvent{n.ArtifactEvent}, nil
	}
	events := make([]ArtifactEvent, 0, len(n.Records))
	for _, r := range n.Records {
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to decode object key %q: %w", r.S3.Object.Key, err)
		}
		events = append(events, ArtifactEvent{
			Bucket:          r.S3.Bucket.Name,
			Key:             key,
			EventType:       NormalizeEventType(r.EventName),
			ETag:            strings.Trim(r.S3.Object.ETag, `"`),
			VersionID:       r.S3.Object.VersionID,
			Sequencer:       r.S3.Object.Sequencer,
			Environment:     n.Environment,
			TargetLanguages: n.TargetLanguages,
		})
	}
	return events, nil
}

// NormalizeEventType maps S3 event names ("ObjectCreated:Put", ...) to
// objectCreated. Flat events must already carry objectCreated exactly.
func NormalizeEventType(raw string) string {
	if raw == "ObjectCreated" || strings.HasPrefix(raw, "ObjectCreated:") {
		return EventObjectCreated
	}
	return raw
}
