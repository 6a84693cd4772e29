package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunOnStartInvokesImmediately(t *testing.T) {
	s := New(Options{Interval: time.Hour, RunOnStart: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := s.Run(ctx, func(context.Context, time.Time) error {
		calls++
		cancel()
		return errors.New("失败也不应中断循环")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled, 实际 %v", err)
	}
	if calls != 1 {
		t.Fatalf("启动时应执行一次, 实际 %d", calls)
	}
}

func TestRunTicksOnInterval(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	calls := 0
	_ = s.Run(ctx, func(context.Context, time.Time) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil
	})
	if calls != 3 {
		t.Fatalf("期望执行 3 次, 实际 %d", calls)
	}
}

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: 15 * time.Minute, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, 3, 1, 9, 7, 30, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("对齐后的下一周期错误: %s", got)
	}
	if got := s.cycleStart(time.Date(2024, 3, 1, 9, 15, 0, 1, time.UTC)); !got.Equal(time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("周期起点错误: %s", got)
	}
}
