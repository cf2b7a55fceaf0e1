package cloudwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
)

const (
	maxLogEventsPerRequest = 10000
	maxLogBatchBytes       = 1048576
	maxLogEventSize        = 256000
	// PutLogEvents counts 26 bytes of overhead per event against the batch size.
	logEventOverhead = 26
)

// LogsPublisherConfig configures the CloudWatch Logs sink behind pkg/logger.
type LogsPublisherConfig struct {
	LogGroupName    string
	LogStreamName   string
	Region          string
	Endpoint        string // LocalStack override
	AccessKeyID     string
	SecretAccessKey string
	BufferSize      int
	FlushInterval   time.Duration
	AutoCreate      bool
}

func (c *LogsPublisherConfig) applyDefaults() error {
	if c.LogGroupName == "" {
		return fmt.Errorf("log group name is required")
	}
	if c.LogStreamName == "" {
		return fmt.Errorf("log stream name is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	return nil
}

type logsAPI interface {
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// LogsPublisher copies every pkg/logger record to a CloudWatch log stream.
//
// Publish runs on the caller's logging path: it only converts and buffers the
// record. A background loop ships the buffer. The publisher never logs through
// pkg/logger; buffer overflow is reported as a synthetic WARN event in the
// stream itself.
type LogsPublisher struct {
	client        logsAPI
	logGroupName  string
	logStreamName string

	mu         sync.Mutex
	pending    []types.InputLogEvent
	bufferSize int
	dropped    int

	// sendMu serializes PutLogEvents calls and guards sequenceToken.
	sendMu        sync.Mutex
	sequenceToken *string

	flushInterval time.Duration
	flushCh       chan struct{}
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

var _ port.LogPublisher = (*LogsPublisher)(nil)

// NewLogsPublisher connects to CloudWatch Logs, optionally creates the group
// and stream, and starts the flush loop.
func NewLogsPublisher(ctx context.Context, cfg LogsPublisherConfig) (*LogsPublisher, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	awsCfg, err := buildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newLogsPublisher(cloudwatchlogs.NewFromConfig(awsCfg), cfg)
	if cfg.AutoCreate {
		if err := p.ensureLogGroupAndStream(ctx); err != nil {
			return nil, err
		}
	}

	p.wg.Add(1)
	go p.flushLoop()
	return p, nil
}

func newLogsPublisher(client logsAPI, cfg LogsPublisherConfig) *LogsPublisher {
	return &LogsPublisher{
		client:        client,
		logGroupName:  cfg.LogGroupName,
		logStreamName: cfg.LogStreamName,
		pending:       make([]types.InputLogEvent, 0, cfg.BufferSize),
		bufferSize:    cfg.BufferSize,
		flushInterval: cfg.FlushInterval,
		flushCh:       make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
}

// Publish buffers one record. It drops the record once ten batches are pending.
func (p *LogsPublisher) Publish(entry port.LogEntry) {
	event, err := toLogEvent(entry)

	p.mu.Lock()
	if err != nil || len(p.pending) >= p.bufferSize*10 {
		p.dropped++
		p.mu.Unlock()
		return
	}
	p.pending = append(p.pending, event)
	full := len(p.pending) >= p.bufferSize
	p.mu.Unlock()

	if full {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
}

// Flush ships everything buffered so far. Events of a batch that could not be
// delivered are put back in front of the buffer for the next attempt.
func (p *LogsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	events := p.pending
	p.pending = make([]types.InputLogEvent, 0, p.bufferSize)
	dropped := p.dropped
	p.dropped = 0
	p.mu.Unlock()

	if dropped > 0 {
		if warn, err := toLogEvent(port.LogEntry{
			Timestamp: time.Now(),
			Level:     port.LogLevelWarn,
			Message:   "cloudwatch logs buffer overflow",
			Fields:    map[string]interface{}{"dropped": dropped},
		}); err == nil {
			events = append(events, warn)
		}
	}
	if len(events) == 0 {
		return nil
	}

	sort.SliceStable(events, func(i, j int) bool {
		return aws.ToInt64(events[i].Timestamp) < aws.ToInt64(events[j].Timestamp)
	})

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	for _, batch := range splitLogBatches(events) {
		if err := p.putWithRetry(ctx, events[batch.from:batch.to]); err != nil {
			p.requeue(events[batch.from:])
			return fmt.Errorf("failed to publish log batch: %w", err)
		}
	}
	return nil
}

func (p *LogsPublisher) requeue(events []types.InputLogEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	room := p.bufferSize*10 - len(p.pending)
	if room <= 0 {
		p.dropped += len(events)
		return
	}
	if len(events) > room {
		p.dropped += len(events) - room
		events = events[len(events)-room:]
	}
	p.pending = append(append(make([]types.InputLogEvent, 0, len(events)+len(p.pending)), events...), p.pending...)
}

// Close stops the flush loop and ships what is left.
func (p *LogsPublisher) Close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *LogsPublisher) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-p.flushCh:
		case <-p.stopCh:
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		// Undelivered events stay buffered; there is no logger to report to.
		_ = p.Flush(ctx)
		cancel()
	}
}

type logBatch struct{ from, to int }

// splitLogBatches cuts sorted events into PutLogEvents-sized batches.
func splitLogBatches(events []types.InputLogEvent) []logBatch {
	var batches []logBatch
	from, size := 0, 0
	for i, e := range events {
		eventSize := len(aws.ToString(e.Message)) + logEventOverhead
		if i > from && (i-from >= maxLogEventsPerRequest || size+eventSize > maxLogBatchBytes) {
			batches = append(batches, logBatch{from, i})
			from, size = i, 0
		}
		size += eventSize
	}
	if from < len(events) {
		batches = append(batches, logBatch{from, len(events)})
	}
	return batches
}

func (p *LogsPublisher) putWithRetry(ctx context.Context, events []types.InputLogEvent) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		out, err := p.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(p.logGroupName),
			LogStreamName: aws.String(p.logStreamName),
			LogEvents:     events,
			SequenceToken: p.sequenceToken,
		})
		if err == nil {
			p.sequenceToken = out.NextSequenceToken
			return nil
		}
		lastErr = err

		if seqErr, ok := isErrorType[*types.InvalidSequenceTokenException](err); ok {
			p.sequenceToken = seqErr.ExpectedSequenceToken
			continue
		}
		if _, ok := isErrorType[*types.DataAlreadyAcceptedException](err); ok {
			return nil
		}

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

// toLogEvent renders a record as one JSON line, truncated to the event size limit.
func toLogEvent(entry port.LogEntry) (types.InputLogEvent, error) {
	line := map[string]interface{}{
		"timestamp": entry.Timestamp.Format(time.RFC3339Nano),
		"level":     string(entry.Level),
		"message":   entry.Message,
	}
	if len(entry.Fields) > 0 {
		line["fields"] = entry.Fields
	}

	raw, err := json.Marshal(line)
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("marshal log entry: %w", err)
	}

	message := string(raw)
	if len(message) > maxLogEventSize {
		message = message[:maxLogEventSize-3] + "..."
	}

	return types.InputLogEvent{
		Message:   aws.String(message),
		Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
	}, nil
}

func (p *LogsPublisher) ensureLogGroupAndStream(ctx context.Context) error {
	_, err := p.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(p.logGroupName),
	})
	if _, exists := isErrorType[*types.ResourceAlreadyExistsException](err); err != nil && !exists {
		return fmt.Errorf("failed to create log group %s: %w", p.logGroupName, err)
	}

	_, err = p.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(p.logGroupName),
		LogStreamName: aws.String(p.logStreamName),
	})
	if _, exists := isErrorType[*types.ResourceAlreadyExistsException](err); err != nil && !exists {
		return fmt.Errorf("failed to create log stream %s: %w", p.logStreamName, err)
	}
	return nil
}
