package trigger

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	expression string
	run        RunFunc
	logger     ectologger.Logger
}

// NewScheduler validates a standard five field cron expression (descriptors such as
// "@hourly" and "@every 10m" are accepted too).
func NewScheduler(expression string, run RunFunc, logger ectologger.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(expression); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return &Scheduler{
		expression: expression,
		run:        run,
		logger:     logger,
	}, nil
}

// Run blocks until ctx is cancelled. A tick that fires while the previous run is still going
// is skipped. On cancel it waits for an in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(s.expression, func() {
		s.logger.WithContext(ctx).Infof("Scheduled sync starting (%s)", s.expression)
		if err := s.run(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Scheduled sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %q: %w", s.expression, err)
	}

	c.Start()
	s.logger.Infof("Sync scheduled on '%s'", s.expression)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
