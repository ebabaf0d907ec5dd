package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrBucketNotFound = errors.New("export bucket does not exist")
	ErrAccessDenied   = errors.New("export bucket access denied")
)

// Storage is where bulk exports are written
type Storage interface {
	// Save stores the object at key
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error
	// URL returns a link the requesting admin can download key from
	URL(ctx context.Context, key string) (string, error)
}

// Config holds S3 connection settings. An empty Endpoint means AWS itself.
type Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PresignTTL time.Duration
}
