// Package checkers holds health.Check implementations for storage backends.
package checkers

import (
	"context"
	"fmt"
)

// Pinger is anything that can verify its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker checks a storage backend through its Ping method.
type PingChecker struct {
	target Pinger
	name   string
}

// NewPingChecker creates a checker named name, or "storage" when name is empty.
func NewPingChecker(target Pinger, name string) *PingChecker {
	if name == "" {
		name = "storage"
	}
	return &PingChecker{target: target, name: name}
}

// Name returns the name of this health check.
func (p *PingChecker) Name() string {
	return p.name
}

// Check pings the backend.
func (p *PingChecker) Check(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}

// Reader reads a blob by key.
type Reader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// BlobChecker verifies that a blob can be read. Errors accepted by
// isMissing (typically not-found) count as healthy.
type BlobChecker struct {
	reader    Reader
	key       string
	isMissing func(error) bool
	name      string
}

// NewBlobChecker creates a checker for key, named "blob:<key>".
func NewBlobChecker(reader Reader, key string, isMissing func(error) bool) *BlobChecker {
	if isMissing == nil {
		isMissing = func(error) bool { return false }
	}
	return &BlobChecker{reader: reader, key: key, isMissing: isMissing, name: "blob:" + key}
}

// Name returns the name of this health check.
func (b *BlobChecker) Name() string {
	return b.name
}

// Check reads the blob.
func (b *BlobChecker) Check(ctx context.Context) error {
	if _, err := b.reader.Read(ctx, b.key); err != nil && !b.isMissing(err) {
		return fmt.Errorf("read %s: %w", b.key, err)
	}
	return nil
}
