// Package cloudwatch wraps the CloudWatch Logs calls behind the console's
// troubleshooting endpoints, including the sync-log folds.
package cloudwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/rs/zerolog"
)

// API is the subset of the CloudWatch Logs client the service needs.
type API interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
	StartQuery(ctx context.Context, params *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, params *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
}

var _ API = (*cloudwatchlogs.Client)(nil)

// Service wraps a per-request CloudWatch Logs client.
type Service struct {
	client       API
	logger       zerolog.Logger
	pollInterval time.Duration
}

// NewService creates a service around a client.
func NewService(client API, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger, pollInterval: time.Second}
}

// LogGroup is a reshaped log group summary.
type LogGroup struct {
	Name        string `json:"logGroupName"`
	CreatedAt   string `json:"createdAt,omitempty"`
	StoredBytes int64  `json:"storedBytes"`
}

// LogStream is a reshaped log stream summary.
type LogStream struct {
	Name           string `json:"logStreamName"`
	FirstEventTime string `json:"firstEventTime,omitempty"`
	LastEventTime  string `json:"lastEventTime,omitempty"`
}

// LogEvent is one reshaped log line.
type LogEvent struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// QueryResult is one Insights result row, flattened field name to value.
type QueryResult map[string]string

// ListLogGroups drains log groups matching an optional name prefix.
func (s *Service) ListLogGroups(ctx context.Context, prefix string) ([]LogGroup, error) {
	input := &cloudwatchlogs.DescribeLogGroupsInput{}
	if prefix != "" {
		input.LogGroupNamePrefix = aws.String(prefix)
	}

	var groups []LogGroup
	for {
		out, err := s.client.DescribeLogGroups(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("DescribeLogGroups: %w", err)
		}
		for _, g := range out.LogGroups {
			groups = append(groups, LogGroup{
				Name:        aws.ToString(g.LogGroupName),
				CreatedAt:   fmtMillis(g.CreationTime),
				StoredBytes: aws.ToInt64(g.StoredBytes),
			})
		}
		if out.NextToken == nil {
			return groups, nil
		}
		input.NextToken = out.NextToken
	}
}

// ValidateLogGroup reports whether a log group with the exact name exists.
func (s *Service) ValidateLogGroup(ctx context.Context, name string) (bool, error) {
	out, err := s.client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return false, fmt.Errorf("DescribeLogGroups: %w", err)
	}
	for _, g := range out.LogGroups {
		if aws.ToString(g.LogGroupName) == name {
			return true, nil
		}
	}
	return false, nil
}

// ListLogStreams returns a log group's streams, most recent events first.
func (s *Service) ListLogStreams(ctx context.Context, logGroup string, limit int32) ([]LogStream, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(logGroup),
		OrderBy:      types.OrderByLastEventTime,
		Descending:   aws.Bool(true),
		Limit:        aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeLogStreams: %w", err)
	}

	streams := make([]LogStream, 0, len(out.LogStreams))
	for _, st := range out.LogStreams {
		streams = append(streams, LogStream{
			Name:           aws.ToString(st.LogStreamName),
			FirstEventTime: fmtMillis(st.FirstEventTimestamp),
			LastEventTime:  fmtMillis(st.LastEventTimestamp),
		})
	}
	return streams, nil
}

// GetEvents returns up to limit events from one stream.
func (s *Service) GetEvents(ctx context.Context, logGroup, logStream string, limit int32) ([]LogEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	out, err := s.client.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(logGroup),
		LogStreamName: aws.String(logStream),
		Limit:         aws.Int32(limit),
		StartFromHead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetLogEvents: %w", err)
	}

	events := make([]LogEvent, 0, len(out.Events))
	for _, ev := range out.Events {
		events = append(events, LogEvent{
			Timestamp: fmtMillis(ev.Timestamp),
			Message:   aws.ToString(ev.Message),
		})
	}
	return events, nil
}

// RunInsightsQuery starts a Logs Insights query and polls until it settles.
func (s *Service) RunInsightsQuery(ctx context.Context, logGroup, query string, start, end time.Time) ([]QueryResult, error) {
	startOut, err := s.client.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(logGroup),
		QueryString:  aws.String(query),
		StartTime:    aws.Int64(start.Unix()),
		EndTime:      aws.Int64(end.Unix()),
	})
	if err != nil {
		return nil, fmt.Errorf("StartQuery: %w", err)
	}

	for {
		out, err := s.client.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{
			QueryId: startOut.QueryId,
		})
		if err != nil {
			return nil, fmt.Errorf("GetQueryResults: %w", err)
		}

		switch out.Status {
		case types.QueryStatusComplete:
			results := make([]QueryResult, 0, len(out.Results))
			for _, row := range out.Results {
				result := QueryResult{}
				for _, field := range row {
					result[aws.ToString(field.Field)] = aws.ToString(field.Value)
				}
				results = append(results, result)
			}
			return results, nil
		case types.QueryStatusFailed, types.QueryStatusCancelled, types.QueryStatusTimeout:
			return nil, fmt.Errorf("insights query ended with status %s", out.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func fmtMillis(ms *int64) string {
	if ms == nil {
		return ""
	}
	return time.UnixMilli(*ms).UTC().Format(time.RFC3339)
}
