package models

import (
	"fmt"
	"strings"
)

// Locator addresses an object in the artifact store. An empty Bucket means the
// store's default output bucket.
type Locator struct {
	Bucket string `json:"bucket" validate:"omitempty"`
	Key    string `json:"key" validate:"required"`
}

func (l Locator) String() string {
	if l.Bucket == "" {
		return l.Key
	}
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

func (l Locator) IsZero() bool {
	return l.Bucket == "" && l.Key == ""
}

func ParseLocator(raw string) (Locator, error) {
	if raw == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Locator{Key: raw}, nil
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return Locator{}, fmt.Errorf("malformed locator %q", raw)
	}
	return Locator{Bucket: bucket, Key: key}, nil
}

type ObjectInfo struct {
	ETag        string            `json:"etag"`
	VersionID   string            `json:"version_id"`
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata"`
}
