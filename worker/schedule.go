package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// Schedule sweeps dir on the given cron spec until ctx is cancelled. A sweep
// still running when the next one fires is not overlapped. The returned cron
// is already started; Stop it to end scheduling early.
func (p *Processor) Schedule(ctx context.Context, spec, dir string) (*cron.Cron, error) {
	logger := cronLogger{logger: p.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(spec, func() {
		if _, err := p.ProcessFromDirectory(ctx, dir); err != nil {
			p.logger.Error("scheduled sweep failed", "dir", dir, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid batch schedule %q: %w", spec, err)
	}

	c.Start()
	p.logger.Info("batch schedule started", "schedule", spec, "dir", dir)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
