package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TrafficSyncService periodically refreshes stored traffic counters from the
// panel on a cron schedule.
type TrafficSyncService struct {
	cron      *cron.Cron
	provision *ProvisionService
	spec      string
	logger    *logrus.Logger
}

// NewTrafficSyncService creates a traffic sync service with the given cron spec
func NewTrafficSyncService(provision *ProvisionService, spec string, logger *logrus.Logger) *TrafficSyncService {
	return &TrafficSyncService{
		cron:      cron.New(),
		provision: provision,
		spec:      spec,
		logger:    logger,
	}
}

// Start schedules the sync job and starts the cron runner
func (s *TrafficSyncService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infof("Traffic sync scheduled: %s", s.spec)
	return nil
}

// Stop stops the cron runner and waits for a running job to finish
func (s *TrafficSyncService) Stop() {
	<-s.cron.Stop().Done()
}

func (s *TrafficSyncService) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.provision.SyncTraffic(ctx); err != nil {
		s.logger.Errorf("Traffic sync failed: %v", err)
	}
}
