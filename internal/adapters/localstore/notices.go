package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/target/stockgate/internal/ports"
)

// noticeTTL bounds how long an unread notice survives.
const noticeTTL = 10 * time.Minute

// NoticeBoard stores the latest notice for a client until it is read.
type NoticeBoard struct {
	kv ports.KeyValueStore
}

var _ ports.Notifier = (*NoticeBoard)(nil)

// NewNoticeBoard constructs a NoticeBoard.
func NewNoticeBoard(kv ports.KeyValueStore) *NoticeBoard {
	return &NoticeBoard{kv: kv}
}

// Notify replaces any pending notice with n.
func (b *NoticeBoard) Notify(ctx context.Context, n ports.Notice) error {
	if err := b.kv.Set(ctx, KeyNotice, []byte(n), noticeTTL); err != nil {
		return fmt.Errorf("store notice: %w", err)
	}
	return nil
}

// Pop returns the pending notice, if any, and clears it.
func (b *NoticeBoard) Pop(ctx context.Context) (ports.Notice, error) {
	data, err := b.kv.Get(ctx, KeyNotice)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read notice: %w", err)
	}
	if delErr := b.kv.Delete(ctx, KeyNotice); delErr != nil {
		return "", fmt.Errorf("clear notice: %w", delErr)
	}
	return ports.Notice(data), nil
}
