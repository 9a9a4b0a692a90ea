package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Ledger keeps one token counter per UTC day in the quota store.
//
// The check and the increment are separate read-then-write operations against
// the store. Requests that pass CheckAndReserve concurrently can all be admitted
// before any of them records usage, and concurrent RecordUsage calls on the same
// day are last-write-wins. The daily limit is a soft budget, not a hard cap.
type Ledger struct {
	store      CounterStore
	sink       UsageSink
	dailyLimit int64
	counterTTL time.Duration
	now        func() time.Time
}

// NewLedger builds a ledger. sink may be nil.
func NewLedger(store CounterStore, sink UsageSink, dailyLimit int64, counterTTL time.Duration) *Ledger {
	if dailyLimit < 0 {
		dailyLimit = 0
	}
	if counterTTL <= 0 {
		counterTTL = 48 * time.Hour
	}

	return &Ledger{
		store:      store,
		sink:       sink,
		dailyLimit: dailyLimit,
		counterTTL: counterTTL,
		now:        time.Now,
	}
}

// DayKey is the counter key for t: its UTC calendar date as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Today returns the counter key for the current UTC day.
func (l *Ledger) Today() string {
	return DayKey(l.now())
}

func (l *Ledger) DailyLimit() int64 {
	return l.dailyLimit
}

// Used returns the tokens recorded so far for day. An absent key is zero, and
// so is a value that is not a non-negative integer; the next RecordUsage
// overwrites it.
func (l *Ledger) Used(ctx context.Context, day string) (int64, error) {
	raw, found, err := l.store.Get(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("read quota counter %s: %w", day, err)
	}
	if !found {
		return 0, nil
	}

	used, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || used < 0 {
		metrics.QuotaCorruptCounters.Inc()
		logger.Warn("quota counter is not an integer, reading it as zero",
			zap.String("day", day),
			zap.ByteString("value", raw),
		)
		return 0, nil
	}
	return used, nil
}

// CheckAndReserve reports whether day still has budget left. It reserves
// nothing in the store; usage is only counted later by RecordUsage.
func (l *Ledger) CheckAndReserve(ctx context.Context, day string) (bool, error) {
	used, err := l.Used(ctx, day)
	if err != nil {
		return false, err
	}
	return used < l.dailyLimit, nil
}

// RecordUsage adds tokens to day's counter and refreshes its expiry.
// Non-positive token counts (usage could not be determined) are a no-op.
func (l *Ledger) RecordUsage(ctx context.Context, day string, tokens int64, attr Attribution) error {
	if tokens <= 0 {
		return nil
	}

	used, err := l.Used(ctx, day)
	if err != nil {
		return err
	}

	total := used + tokens
	if err := l.store.Put(ctx, day, []byte(strconv.FormatInt(total, 10)), l.counterTTL); err != nil {
		return fmt.Errorf("write quota counter %s: %w", day, err)
	}

	source := attr.Source
	if source == "" {
		source = SourceChat
	}
	metrics.TokensRecorded.WithLabelValues(source).Add(float64(tokens))

	if l.sink != nil {
		usage := Usage{
			Day:        day,
			Tokens:     tokens,
			DayTotal:   total,
			Model:      attr.Model,
			Source:     source,
			OccurredAt: l.now().UTC(),
		}
		if err := l.sink.PublishUsage(ctx, usage); err != nil {
			logger.Warn("failed to publish usage event", zap.Error(err), zap.String("day", day))
		}
	}

	return nil
}

// RecordIntroUsage charges tokens spent precomputing a link intro to today.
func (l *Ledger) RecordIntroUsage(ctx context.Context, model string, tokens int64) error {
	return l.RecordUsage(ctx, l.Today(), tokens, Attribution{Model: model, Source: SourceIntro})
}
