package links

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/metrics"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/validation"
	"go.uber.org/zap"
)

const maxSlugAttempts = 10

type Options struct {
	SlugLength   int
	TTL          time.Duration
	ShareBaseURL string
}

type Service struct {
	store      PayloadStore
	slugger    Slugger
	intro      IntroGenerator
	usage      UsageRecorder
	slugLength int
	ttl        time.Duration
	shareBase  *url.URL
}

// NewService builds the link registry. intro may be nil, in which case links
// are stored without a precomputed opening message. usage may be nil.
func NewService(store PayloadStore, slugger Slugger, intro IntroGenerator, usage UsageRecorder, opts Options) (*Service, error) {
	if opts.SlugLength <= 0 {
		opts.SlugLength = defaultSlugLength
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}

	base, err := url.Parse(opts.ShareBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid share base url %q", opts.ShareBaseURL)
	}

	return &Service{
		store:      store,
		slugger:    slugger,
		intro:      intro,
		usage:      usage,
		slugLength: opts.SlugLength,
		ttl:        opts.TTL,
		shareBase:  base,
	}, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	slug, err := s.freeSlug(ctx)
	if err != nil {
		return nil, err
	}

	rec := Record{
		To:      in.To,
		From:    in.From,
		Request: in.Request,
		Context: in.Context,
	}

	if s.intro != nil {
		text, err := s.precompute(ctx, in)
		if err != nil {
			return nil, err
		}
		rec.Intro = text
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode link record: %w", err)
	}
	if err := s.store.Put(ctx, slug, value, s.ttl); err != nil {
		return nil, fmt.Errorf("store link %s: %w", slug, err)
	}

	metrics.LinksCreated.WithLabelValues(strconv.FormatBool(rec.Intro != "")).Inc()

	return &Created{Slug: slug, URL: s.ShareURL(slug)}, nil
}

// Fetch returns the stored record bytes unchanged.
func (s *Service) Fetch(ctx context.Context, slug string) ([]byte, error) {
	if err := validation.Var(slug, "slug,max=64"); err != nil {
		return nil, ErrNotFound
	}

	value, found, err := s.store.Get(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("load link %s: %w", slug, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

// ShareURL is the address the creator hands to the recipient.
func (s *Service) ShareURL(slug string) string {
	u := *s.shareBase
	q := u.Query()
	q.Set("slug", slug)
	u.RawQuery = q.Encode()
	return u.String()
}

// freeSlug draws slugs until one is not already in use. Links are
// create-once, so a plain existence check is enough.
func (s *Service) freeSlug(ctx context.Context) (string, error) {
	for range maxSlugAttempts {
		slug, err := s.slugger.Generate(s.slugLength)
		if err != nil {
			return "", err
		}

		_, found, err := s.store.Get(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug %s: %w", slug, err)
		}
		if !found {
			return slug, nil
		}
	}
	return "", ErrSlugTaken
}

func (s *Service) precompute(ctx context.Context, in CreateInput) (string, error) {
	intro, err := s.intro.GenerateIntro(ctx, BuildIntroPrompt(in))
	if err != nil {
		metrics.IntroFailures.Inc()
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if s.usage != nil {
		if err := s.usage.RecordIntroUsage(ctx, intro.Model, intro.TotalTokens); err != nil {
			logger.Warn("failed to record intro usage", zap.Error(err))
		}
	}

	text := strings.TrimSpace(intro.Text)
	if text == "" {
		metrics.IntroFailures.Inc()
		return "", fmt.Errorf("%w: empty reply", ErrUpstream)
	}
	return text, nil
}
