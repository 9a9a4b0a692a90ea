package links

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("link not found")
	ErrSlugTaken = errors.New("slug taken")
	// ErrUpstream means the intro precompute call failed or returned
	// something unusable. Nothing is stored when it is returned.
	ErrUpstream = errors.New("intro precompute failed")
)

// PayloadStore is the link namespace of the key-value store. A missing or
// expired key reports found=false.
type PayloadStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type IntroGenerator interface {
	GenerateIntro(ctx context.Context, systemPrompt string) (Intro, error)
}

// UsageRecorder accounts for tokens spent on intro precompute.
type UsageRecorder interface {
	RecordIntroUsage(ctx context.Context, model string, tokens int64) error
}

type Slugger interface {
	Generate(length int) (string, error)
}
