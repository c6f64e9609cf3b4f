package scheduler

import (
	"log"

	"github.com/robfig/cron/v3"

	"server-tracker/internal/services"
)

// Scheduler drives the periodic fleet refresh
type Scheduler struct {
	cron           *cron.Cron
	trackerService *services.TrackerService
}

// NewScheduler creates a new scheduler
func NewScheduler(trackerService *services.TrackerService) *Scheduler {
	return &Scheduler{
		cron:           cron.New(),
		trackerService: trackerService,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(checkInterval string) error {
	_, err := s.cron.AddFunc(checkInterval, func() {
		log.Println("Starting scheduled server refresh...")
		if err := s.trackerService.RefreshAll(); err != nil {
			log.Printf("Scheduled refresh failed: %v", err)
		}
		if err := s.trackerService.ReportStaleData(); err != nil {
			log.Printf("Stale data check failed: %v", err)
		}
		log.Println("Scheduled server refresh completed")
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Scheduler started with interval: %s", checkInterval)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}
