package refresh

import (
	"context"
	"errors"
	"vocarank/internal/providers"
	"vocarank/internal/structures"

	"github.com/roylee0704/gron"
	"github.com/roylee0704/gron/xtime"
)

type SchedulerInterface interface {
	Init()
	Stop()
}

// Scheduler runs the daily views refresh.
type Scheduler struct {
	config    *structures.Config
	logger    providers.Logger
	refresher RefresherInterface
	cron      *gron.Cron
}

func NewScheduler(config *structures.Config, logger providers.Logger, refresher RefresherInterface) SchedulerInterface {
	return &Scheduler{
		config:    config,
		logger:    logger,
		refresher: refresher,
	}
}

func (s *Scheduler) Init() {
	if !s.config.Refresh.Enabled {
		s.logger.Infof(providers.TypeRefresh, "Daily refresh disabled")
		return
	}
	s.cron = gron.New()

	var schedule gron.Schedule = gron.Every(xtime.Day)
	if s.config.Refresh.At != "" {
		schedule = gron.Every(xtime.Day).At(s.config.Refresh.At)
	}
	s.cron.AddFunc(schedule, s.run)
	s.cron.Start()
	s.logger.Infof(providers.TypeRefresh, "Daily refresh scheduled at %q", s.config.Refresh.At)
}

func (s *Scheduler) run() {
	summary, err := s.refresher.RefreshAllViews(context.Background(), OptionsFromConfig(s.config))
	switch {
	case errors.Is(err, ErrAlreadyRefreshing), errors.Is(err, ErrStaleTimestamp):
		s.logger.Warnf(providers.TypeRefresh, "Scheduled refresh skipped: %v", err)
	case err != nil:
		s.logger.Errorf(providers.TypeRefresh, "Scheduled refresh failed: %v", err)
	default:
		s.logger.Infof(providers.TypeRefresh, "Scheduled refresh %s wrote %s", summary.RunID, summary.Day.Format("2006-01-02"))
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
