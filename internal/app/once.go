package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"newsinsight/internal/service"
	"newsinsight/internal/storage"
)

// RunOnce executes a single feed cycle outside the scheduler.
func (a *App) RunOnce(ctx context.Context, opts OnceOptions) error {
	var (
		store      *storage.Store
		closeStore func()
		err        error
	)

	if opts.DryRun {
		a.Logger.Warn().Msg("dry-run：不会写入数据库，也不会去重")
	} else {
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn 未配置；使用 --dry-run 跳过持久化")
		}
		if closeStore != nil {
			defer closeStore()
		}
	}

	deps, cleanup, err := a.serviceDeps(ctx, store)
	if err != nil {
		return err
	}
	defer cleanup()
	if opts.DryRun {
		deps.Notifier = nil
	}

	svc := service.New(a.Config, deps, a.Logger)
	report, err := svc.RunCycle(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "feeds=%d feed_errors=%d articles=%d skipped=%d insights=%d signals=%d alerts=%d failures=%d\n",
		report.Feeds, report.FeedErrors, report.Articles, report.Skipped, report.Insights, report.Signals, report.Alerts, report.Failures)
	if report.Failures > 0 {
		return errors.New("部分洞察写入失败，请检查日志")
	}
	return nil
}
