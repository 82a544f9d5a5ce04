package service

import (
	"context"
	"errors"
	"fmt"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/events"
	"fraud_monitor/internal/repository"
	"fraud_monitor/pkg/metrics"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

var ErrDispatcherClosed = errors.New("alert dispatcher is shut down")

// Cascade maps each channel to its providers in the order they are tried.
type Cascade map[domain.AlertChannel][]Provider

type DispatcherConfig struct {
	Workers         int
	QueueSize       int
	TestDelay       time.Duration
	TestSuccessRate float64
	SendTimeout     time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:         2,
		QueueSize:       100,
		TestDelay:       time.Second,
		TestSuccessRate: 0.9,
		SendTimeout:     30 * time.Second,
	}
}

// AlertDispatcher creates alerts and walks the provider cascade for their
// channel. Alerts always end DELIVERED or FAILED.
type AlertDispatcher struct {
	alertRepo    repository.AlertRepository
	cascade      Cascade
	publisher    events.Publisher
	metrics      *metrics.MetricsCollector
	cfg          DispatcherConfig
	rand         func() float64
	now          func() time.Time
	queue        chan domain.AlertRequest
	mu           sync.RWMutex
	closed       bool
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

type DispatcherOption func(*AlertDispatcher)

// WithRand replaces the randomness source of test alerts.
func WithRand(r func() float64) DispatcherOption {
	return func(d *AlertDispatcher) { d.rand = r }
}

func WithPublisher(p events.Publisher) DispatcherOption {
	return func(d *AlertDispatcher) { d.publisher = p }
}

func WithMetrics(m *metrics.MetricsCollector) DispatcherOption {
	return func(d *AlertDispatcher) { d.metrics = m }
}

func NewAlertDispatcher(
	alertRepo repository.AlertRepository,
	cascade Cascade,
	cfg DispatcherConfig,
	logger *slog.Logger,
	opts ...DispatcherOption,
) *AlertDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	d := &AlertDispatcher{
		alertRepo:    alertRepo,
		cascade:      cascade,
		cfg:          cfg,
		rand:         rand.Float64,
		now:          time.Now,
		queue:        make(chan domain.AlertRequest, cfg.QueueSize),
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.publisher == nil {
		d.publisher = events.NewNoopPublisher(logger)
	}

	d.startWorkers()
	return d
}

// Send creates a PENDING alert and delivers it before returning.
func (d *AlertDispatcher) Send(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error) {
	alert, err := d.create(ctx, req)
	if err != nil {
		return nil, err
	}

	n := Notification{
		AlertID:  alert.ID,
		ReportID: alert.ReportID,
		Channel:  alert.Channel,
		Type:     typeOrDefault(req.Type),
		Message:  alert.Message,
	}

	var delivered bool
	for _, provider := range d.cascade[alert.Channel] {
		start := time.Now()
		err := provider.Send(ctx, n)
		if err == nil {
			d.logger.InfoContext(ctx, "Alert delivered",
				slog.String("alert_id", alert.ID),
				slog.String("provider", provider.Name()),
				slog.Duration("duration", time.Since(start)))
			delivered = true
			break
		}
		d.logger.WarnContext(ctx, "Alert provider failed, trying next",
			slog.String("alert_id", alert.ID),
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()))
	}

	if delivered {
		err = alert.MarkDelivered(d.now())
	} else {
		d.logger.ErrorContext(ctx, "All alert providers failed",
			slog.String("alert_id", alert.ID),
			slog.String("channel", string(alert.Channel)))
		err = alert.MarkFailed()
	}
	if err != nil {
		return nil, err
	}

	if err := d.finish(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// SendTest simulates delivery after the configured delay and succeeds with
// the configured probability.
func (d *AlertDispatcher) SendTest(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error) {
	alert, err := d.create(ctx, req)
	if err != nil {
		return nil, err
	}

	if d.cfg.TestDelay > 0 {
		timer := time.NewTimer(d.cfg.TestDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			_ = alert.MarkFailed()
			if err := d.finish(ctx, alert); err != nil {
				return nil, err
			}
			return alert, ctx.Err()
		}
	}

	if d.rand() < d.cfg.TestSuccessRate {
		err = alert.MarkDelivered(d.now())
	} else {
		err = alert.MarkFailed()
	}
	if err != nil {
		return nil, err
	}

	if err := d.finish(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Enqueue hands an alert to the worker pool. It blocks while the queue is full.
func (d *AlertDispatcher) Enqueue(ctx context.Context, req domain.AlertRequest) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- req:
		d.metrics.SetAlertQueueDepth(len(d.queue))
		d.logger.InfoContext(ctx, "Alert queued",
			slog.String("channel", string(req.Channel)),
			slog.String("report_id", req.ReportID))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AlertDispatcher) create(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error) {
	channel, err := domain.ParseAlertChannel(string(req.Channel))
	if err != nil {
		return nil, err
	}
	req.Channel = channel

	alert := domain.NewAlert(req)
	if err := d.alertRepo.Save(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}
	return alert, nil
}

// finish stores the terminal status even when the caller has gone away.
func (d *AlertDispatcher) finish(ctx context.Context, alert *domain.Alert) error {
	ctx = context.WithoutCancel(ctx)
	if err := d.alertRepo.Update(ctx, alert); err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	d.metrics.RecordAlert(string(alert.Channel), string(alert.Status))

	eventType := domain.EventAlertDelivered
	if alert.Status == domain.AlertFailed {
		eventType = domain.EventAlertFailed
	}
	event, err := domain.NewEvent(eventType, alert.ID, alert)
	if err == nil {
		err = d.publisher.Publish(ctx, event)
	}
	if err != nil {
		d.metrics.RecordPublishFailure(eventType)
		d.logger.WarnContext(ctx, "Failed to publish event",
			slog.String("event_type", eventType),
			slog.String("alert_id", alert.ID),
			slog.String("error", err.Error()))
	}
	return nil
}

func (d *AlertDispatcher) startWorkers() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *AlertDispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Info("Alert worker started", slog.Int("worker_id", id))

	for {
		select {
		case req := <-d.queue:
			d.process(req, id)
		case <-d.shutdownChan:
			for {
				select {
				case req := <-d.queue:
					d.process(req, id)
				default:
					d.logger.Info("Alert worker stopping", slog.Int("worker_id", id))
					return
				}
			}
		}
	}
}

func (d *AlertDispatcher) process(req domain.AlertRequest, workerID int) {
	d.metrics.SetAlertQueueDepth(len(d.queue))

	ctx := context.Background()
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}

	alert, err := d.Send(ctx, req)
	if err != nil {
		d.logger.Error("Failed to dispatch queued alert",
			slog.String("channel", string(req.Channel)),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID))
		return
	}
	d.logger.Info("Queued alert processed",
		slog.String("alert_id", alert.ID),
		slog.String("status", string(alert.Status)),
		slog.Int("worker_id", workerID))
}

// Shutdown stops accepting alerts, drains the queue and waits for workers.
func (d *AlertDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.shutdownChan)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Alert dispatcher shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func typeOrDefault(t string) string {
	if t == "" {
		return domain.DefaultAlertType
	}
	return t
}
