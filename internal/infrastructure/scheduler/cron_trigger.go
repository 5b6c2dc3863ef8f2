package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidConfig is returned when the trigger configuration is invalid
var ErrInvalidConfig = errors.New("invalid cron trigger configuration")

// DailyJob is the work fired once per day
type DailyJob func(ctx context.Context) error

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// Hour and Minute are the local wall-clock time to fire at (24h format)
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// RunTimeout bounds a single run; zero means no timeout
	RunTimeout time.Duration

	// Location decides the wall clock; nil means time.Local
	Location *time.Location
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Hour:          8, // 8am
		Minute:        0,
		CheckInterval: time.Minute,
		RunTimeout:    time.Hour,
	}
}

// Validate checks the configured time of day
func (c CronTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return ErrInvalidConfig
	}
	if c.CheckInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// CronTrigger fires a job once a day at the configured local time
type CronTrigger struct {
	config CronTriggerConfig
	job    DailyJob
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last ran for
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, job DailyJob, logger *zap.Logger) (*CronTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		config: config,
		job:    job,
		logger: logger.Named("cron"),
		now:    time.Now,
	}, nil
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
		zap.String("location", c.config.Location.String()),
		zap.Duration("check_interval", c.config.CheckInterval),
	)

	return nil
}

// Stop stops the cron trigger, waiting for an in-flight run until ctx expires
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (c *CronTrigger) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRunning
}

// runLoop checks periodically if it's time to run
func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the job when the wall clock has reached the configured
// time and the job has not yet fired today. A missed minute still fires later
// the same day.
func (c *CronTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now().In(c.config.Location)
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), c.config.Hour, c.config.Minute, 0, 0, c.config.Location)
	if now.Before(due) {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering daily run", zap.String("date", currentDate))
	c.trigger(ctx)
	return true
}

func (c *CronTrigger) trigger(ctx context.Context) {
	if c.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.job(ctx); err != nil {
		c.logger.Error("Daily run failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	c.logger.Info("Daily run completed", zap.Duration("duration", time.Since(start)))
}
