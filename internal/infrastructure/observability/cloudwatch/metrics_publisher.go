package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest   = 1000
	maxDimensionsPerMetric = 30
	maxRetries             = 3
	initialBackoff         = 100 * time.Millisecond
	flushTimeout           = 30 * time.Second
)

// putMetricDataAPI is the subset of the CloudWatch client used by MetricsPublisher.
type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "CRM/Backend")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all metrics
	BufferSize        int               // Buffer size before auto-flush
	FlushInterval     time.Duration     // Automatic flush interval
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
}

func (c *MetricsPublisherConfig) applyDefaults() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 10 * time.Second
	}
	if c.StorageResolution != 1 && c.StorageResolution != 60 {
		c.StorageResolution = 60
	}
	return nil
}

// MetricsPublisher ships counters, histograms and gauges to AWS CloudWatch.
// It implements port.MetricsSink: records are buffered in memory and
// published by a background loop, so callers never wait on the network.
type MetricsPublisher struct {
	client            putMetricDataAPI
	namespace         string
	defaultDimensions map[string]string
	storageResolution int32
	log               *logger.Logger

	buffer     []types.MetricDatum
	bufferSize int
	dropped    int
	mu         sync.Mutex
	sendMu     sync.Mutex

	flushInterval time.Duration
	flushCh       chan struct{}
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

var _ port.MetricsSink = (*MetricsPublisher)(nil)

// NewMetricsPublisher creates a CloudWatch metrics publisher and starts its flush loop.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig, log *logger.Logger) (*MetricsPublisher, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg, log)
	p.start()
	return p, nil
}

func newMetricsPublisher(client putMetricDataAPI, cfg MetricsPublisherConfig, log *logger.Logger) *MetricsPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		storageResolution: cfg.StorageResolution,
		log:               log.With("component", "cloudwatch_metrics"),
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		flushInterval:     cfg.FlushInterval,
		flushCh:           make(chan struct{}, 1),
		stopCh:            make(chan struct{}),
	}
}

func (p *MetricsPublisher) start() {
	p.wg.Add(1)
	go p.flushLoop()
}

// IncCounter records a single increment with unit Count.
func (p *MetricsPublisher) IncCounter(name string, labels port.Labels) {
	p.enqueue(name, labels, 1, types.StandardUnitCount)
}

// ObserveHistogram records one observation. Names ending in _ms are sent as milliseconds.
func (p *MetricsPublisher) ObserveHistogram(name string, labels port.Labels, value float64) {
	p.enqueue(name, labels, value, unitForName(name))
}

// SetGauge records the current value of a gauge.
func (p *MetricsPublisher) SetGauge(name string, labels port.Labels, value float64) {
	p.enqueue(name, labels, value, unitForName(name))
}

func (p *MetricsPublisher) enqueue(name string, labels port.Labels, value float64, unit types.StandardUnit) {
	datum := p.newDatum(name, labels, value, unit, time.Now())

	p.mu.Lock()
	// The buffer is capped at ten batches so a CloudWatch outage cannot grow memory without bound.
	if len(p.buffer) >= p.bufferSize*10 {
		p.dropped++
		p.mu.Unlock()
		return
	}
	p.buffer = append(p.buffer, datum)
	full := len(p.buffer) >= p.bufferSize
	p.mu.Unlock()

	if full {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
}

// Flush forces immediate publication of all buffered metrics.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	data := p.buffer
	p.buffer = make([]types.MetricDatum, 0, p.bufferSize)
	dropped := p.dropped
	p.dropped = 0
	p.mu.Unlock()

	if dropped > 0 {
		p.log.Warn("cloudwatch metrics buffer overflow", "dropped", dropped)
	}
	if len(data) == 0 {
		return nil
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	// Publish in chunks (CloudWatch limit: 1000 metrics/request)
	for i := 0; i < len(data); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(data) {
			end = len(data)
		}
		if err := p.publishBatchWithRetry(ctx, data[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}
	return nil
}

// Close stops the background flush goroutine and flushes remaining metrics.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	return p.Flush(ctx)
}

// flushLoop flushes the buffer periodically and whenever it fills up.
func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flushInBackground()
		case <-p.flushCh:
			p.flushInBackground()
		case <-p.stopCh:
			return
		}
	}
}

func (p *MetricsPublisher) flushInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.Flush(ctx); err != nil {
		p.log.Error("cloudwatch metrics flush failed", err)
	}
}

// publishBatchWithRetry publishes a batch of metrics with exponential backoff retry.
func (p *MetricsPublisher) publishBatchWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// newDatum converts a sink record to a CloudWatch MetricDatum.
// Dimensions are sorted by name so equal label sets aggregate together.
func (p *MetricsPublisher) newDatum(name string, labels port.Labels, value float64, unit types.StandardUnit, ts time.Time) types.MetricDatum {
	merged := make(map[string]string, len(p.defaultDimensions)+len(labels))
	for k, v := range p.defaultDimensions {
		merged[k] = v
	}
	for k, v := range labels {
		if v == "" {
			continue
		}
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > maxDimensionsPerMetric {
		keys = keys[:maxDimensionsPerMetric]
	}

	dimensions := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(merged[k]),
		})
	}

	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(ts),
		Dimensions: dimensions,
	}
	if p.storageResolution > 0 {
		datum.StorageResolution = aws.Int32(p.storageResolution)
	}
	return datum
}

// unitForName infers the CloudWatch unit from the metric name suffix.
func unitForName(name string) types.StandardUnit {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return types.StandardUnitNone
	}
	return mapUnit(name[i+1:])
}

// mapUnit maps metric units to CloudWatch StandardUnit.
func mapUnit(unit string) types.StandardUnit {
	switch unit {
	case "%", "percent":
		return types.StandardUnitPercent
	case "bytes":
		return types.StandardUnitBytes
	case "KB":
		return types.StandardUnitKilobytes
	case "MB":
		return types.StandardUnitMegabytes
	case "GB":
		return types.StandardUnitGigabytes
	case "ms":
		return types.StandardUnitMilliseconds
	case "s", "seconds":
		return types.StandardUnitSeconds
	case "count", "total":
		return types.StandardUnitCount
	default:
		return types.StandardUnitNone
	}
}

// buildAWSConfig creates an AWS config with credentials.
func buildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}

	// Override endpoint if specified (for LocalStack testing)
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}

// isErrorType reports whether err wraps an AWS API error of type T.
func isErrorType[T error](err error) (T, bool) {
	var target T
	if err == nil {
		return target, false
	}
	ok := errors.As(err, &target)
	return target, ok
}
