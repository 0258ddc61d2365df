package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CronService schedules the overdue sweep
type CronService struct {
	cron    *cron.Cron
	overdue *OverdueService
	spec    string
}

// NewCronService creates a new cron service
func NewCronService(overdue *OverdueService, spec string) *CronService {
	return &CronService{
		cron:    cron.New(),
		overdue: overdue,
		spec:    spec,
	}
}

// Start registers the sweep job and starts the scheduler
func (s *CronService) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.overdue.Run(ctx); err != nil {
			log.Printf("❌ Scheduled overdue sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("✅ Overdue sweep scheduled (%s)", s.spec)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("✅ Cron scheduler stopped")
}
