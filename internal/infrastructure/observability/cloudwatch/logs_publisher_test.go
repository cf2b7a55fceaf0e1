package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
)

type fakeLogsClient struct {
	mu         sync.Mutex
	calls      []*cloudwatchlogs.PutLogEventsInput
	failFirst  error
	failAlways error
	groups     int
	streams    int
}

func (f *fakeLogsClient) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.failAlways != nil {
		return nil, f.failAlways
	}
	if f.failFirst != nil {
		err := f.failFirst
		f.failFirst = nil
		return nil, err
	}
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: aws.String("next")}, nil
}

func (f *fakeLogsClient) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.groups++
	return nil, &types.ResourceAlreadyExistsException{}
}

func (f *fakeLogsClient) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.streams++
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogsClient) sent() []types.InputLogEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.InputLogEvent
	for _, c := range f.calls {
		out = append(out, c.LogEvents...)
	}
	return out
}

var logsBase = time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

func testLogsPublisher(client logsAPI, bufferSize int) *LogsPublisher {
	return newLogsPublisher(client, LogsPublisherConfig{LogGroupName: "/crm/backend", LogStreamName: "api", BufferSize: bufferSize})
}

func TestToLogEvent(t *testing.T) {
	event, err := toLogEvent(port.LogEntry{
		Timestamp: logsBase,
		Level:     port.LogLevelWarn,
		Message:   "Alert triggered",
		Fields:    map[string]interface{}{"alert_id": "a-12345", "type": "cpu", "value": 91},
	})
	require.NoError(t, err)

	assert.Equal(t, logsBase.UnixMilli(), aws.ToInt64(event.Timestamp))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(event.Message)), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "Alert triggered", line["message"])
	fields, ok := line["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a-12345", fields["alert_id"])
	assert.EqualValues(t, 91, fields["value"])
}

func TestToLogEvent_OmitsEmptyFieldsAndTruncates(t *testing.T) {
	event, err := toLogEvent(port.LogEntry{Timestamp: logsBase, Level: port.LogLevelError, Message: "db down"})
	require.NoError(t, err)
	assert.NotContains(t, aws.ToString(event.Message), `"fields"`)

	event, err = toLogEvent(port.LogEntry{Timestamp: logsBase, Message: strings.Repeat("x", maxLogEventSize+1000)})
	require.NoError(t, err)
	msg := aws.ToString(event.Message)
	assert.Len(t, msg, maxLogEventSize)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestNewLogsPublisher_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config LogsPublisherConfig
		errMsg string
	}{
		{"missing log group", LogsPublisherConfig{LogStreamName: "s", Region: "us-east-1"}, "log group name is required"},
		{"missing log stream", LogsPublisherConfig{LogGroupName: "/crm", Region: "us-east-1"}, "log stream name is required"},
		{"missing region", LogsPublisherConfig{LogGroupName: "/crm", LogStreamName: "s"}, "region is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLogsPublisher(context.Background(), tt.config)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLogsPublisher_FlushSortsChronologically(t *testing.T) {
	client := &fakeLogsClient{}
	p := testLogsPublisher(client, 10)

	p.Publish(port.LogEntry{Timestamp: logsBase.Add(5 * time.Second), Level: port.LogLevelInfo, Message: "Third"})
	p.Publish(port.LogEntry{Timestamp: logsBase, Level: port.LogLevelInfo, Message: "First"})
	p.Publish(port.LogEntry{Timestamp: logsBase.Add(2 * time.Second), Level: port.LogLevelInfo, Message: "Second"})
	require.NoError(t, p.Flush(context.Background()))

	require.Len(t, client.calls, 1)
	events := client.calls[0].LogEvents
	require.Len(t, events, 3)
	assert.Contains(t, aws.ToString(events[0].Message), `"First"`)
	assert.Contains(t, aws.ToString(events[2].Message), `"Third"`)
	assert.Empty(t, p.pending)
}

func TestLogsPublisher_PublishNeverCallsCloudWatch(t *testing.T) {
	client := &fakeLogsClient{}
	p := testLogsPublisher(client, 2)

	p.Publish(port.LogEntry{Timestamp: logsBase, Message: "a"})
	assert.Empty(t, p.flushCh)
	p.Publish(port.LogEntry{Timestamp: logsBase, Message: "b"})

	assert.Empty(t, client.calls)
	assert.Len(t, p.flushCh, 1, "full buffer wakes the flush loop")
}

func TestLogsPublisher_OverflowReportedInStream(t *testing.T) {
	client := &fakeLogsClient{}
	p := testLogsPublisher(client, 1)

	for i := 0; i < 15; i++ {
		p.Publish(port.LogEntry{Timestamp: logsBase.Add(time.Duration(i) * time.Millisecond), Message: "burst"})
	}
	assert.Len(t, p.pending, 10)
	assert.Equal(t, 5, p.dropped)

	require.NoError(t, p.Flush(context.Background()))
	sent := client.sent()
	require.Len(t, sent, 11)
	var overflow string
	for _, e := range sent {
		if strings.Contains(aws.ToString(e.Message), "cloudwatch logs buffer overflow") {
			overflow = aws.ToString(e.Message)
		}
	}
	assert.Contains(t, overflow, `"dropped":5`)
	assert.Zero(t, p.dropped)
}

func TestLogsPublisher_FailedFlushKeepsEvents(t *testing.T) {
	client := &fakeLogsClient{failAlways: errors.New("throttled")}
	p := testLogsPublisher(client, 10)

	p.Publish(port.LogEntry{Timestamp: logsBase, Message: "a"})
	p.Publish(port.LogEntry{Timestamp: logsBase.Add(time.Second), Message: "b"})

	err := p.Flush(context.Background())
	require.Error(t, err)
	assert.Len(t, client.calls, maxRetries)
	require.Len(t, p.pending, 2)
	assert.Contains(t, aws.ToString(p.pending[0].Message), `"a"`)

	client.mu.Lock()
	client.failAlways = nil
	client.mu.Unlock()
	require.NoError(t, p.Flush(context.Background()))
	assert.Empty(t, p.pending)
}

func TestLogsPublisher_RetriesWithExpectedSequenceToken(t *testing.T) {
	client := &fakeLogsClient{
		failFirst: &types.InvalidSequenceTokenException{ExpectedSequenceToken: aws.String("expected")},
	}
	p := testLogsPublisher(client, 10)

	p.Publish(port.LogEntry{Timestamp: logsBase, Message: "a"})
	require.NoError(t, p.Flush(context.Background()))

	require.Len(t, client.calls, 2)
	assert.Equal(t, "expected", aws.ToString(client.calls[1].SequenceToken))
	assert.Equal(t, "next", aws.ToString(p.sequenceToken))
}

func TestSplitLogBatches(t *testing.T) {
	big := strings.Repeat("x", 300_000)
	events := make([]types.InputLogEvent, 4)
	for i := range events {
		events[i] = types.InputLogEvent{Message: aws.String(big), Timestamp: aws.Int64(int64(i))}
	}
	assert.Equal(t, []logBatch{{0, 3}, {3, 4}}, splitLogBatches(events))

	small := make([]types.InputLogEvent, maxLogEventsPerRequest+1)
	for i := range small {
		small[i] = types.InputLogEvent{Message: aws.String("m"), Timestamp: aws.Int64(int64(i))}
	}
	assert.Equal(t, []logBatch{{0, maxLogEventsPerRequest}, {maxLogEventsPerRequest, maxLogEventsPerRequest + 1}}, splitLogBatches(small))

	assert.Empty(t, splitLogBatches(nil))
}

func TestLogsPublisher_CloseFlushesRemainder(t *testing.T) {
	client := &fakeLogsClient{}
	p := testLogsPublisher(client, 10)

	p.Publish(port.LogEntry{Timestamp: logsBase, Message: "shutdown"})
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.Len(t, client.sent(), 1)
}

func TestLogsPublisher_EnsureLogGroupIgnoresAlreadyExists(t *testing.T) {
	client := &fakeLogsClient{}
	p := testLogsPublisher(client, 10)

	require.NoError(t, p.ensureLogGroupAndStream(context.Background()))
	assert.Equal(t, 1, client.groups)
	assert.Equal(t, 1, client.streams)
}

func TestIsErrorType_Wrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("operation error"), &types.ResourceAlreadyExistsException{})
	_, ok := isErrorType[*types.ResourceAlreadyExistsException](wrapped)
	assert.True(t, ok)

	_, ok = isErrorType[*types.ResourceAlreadyExistsException](errors.New("other"))
	assert.False(t, ok)
}
