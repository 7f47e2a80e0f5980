package cloudwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// syncWindowBuffer widens the queried time range around a sync job's
// recorded start/end so that entries logged just outside the job window are
// still captured.
const syncWindowBuffer = 5 * time.Minute

// Group is the folded group-membership record for one group name.
type Group struct {
	Name      string   `json:"groupName"`
	Users     []string `json:"users"`
	SubGroups []string `json:"subGroups,omitempty"`
}

// ACLEntry is one principal's access entry on a document.
type ACLEntry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Access string `json:"access"`
}

// ACLDocument is the folded ACL record for one document id.
type ACLDocument struct {
	DocumentID    string     `json:"documentId"`
	DocumentTitle string     `json:"documentTitle,omitempty"`
	ACLEntries    []ACLEntry `json:"aclEntries"`
}

// SyncError is one reshaped sync error line.
type SyncError struct {
	DocumentID   string `json:"documentId,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage"`
	Timestamp    string `json:"timestamp"`
}

// One JSON payload per log line; unknown fields ignored, malformed lines
// skipped.
type membershipLine struct {
	GroupName string   `json:"GroupName"`
	Users     []string `json:"Users"`
	Groups    []string `json:"Groups"`
}

type aclLine struct {
	DocumentID    string     `json:"DocumentId"`
	DocumentTitle string     `json:"DocumentTitle"`
	ACL           []ACLEntry `json:"Acl"`
}

type syncErrorLine struct {
	DocumentID   string `json:"DocumentId"`
	ErrorCode    string `json:"ErrorCode"`
	ErrorMessage string `json:"ErrorMessage"`
	LogLevel     string `json:"LogLevel"`
}

// GroupMembership drains the sync log over the buffered job window and folds
// repeated group entries by name, order preserved.
func (s *Service) GroupMembership(ctx context.Context, logGroup string, jobStart, jobEnd time.Time) ([]Group, error) {
	messages, err := s.drainWindow(ctx, logGroup, jobStart, jobEnd)
	if err != nil {
		return nil, err
	}

	var order []string
	byName := map[string]*Group{}
	for _, msg := range messages {
		var line membershipLine
		if err := json.Unmarshal([]byte(msg), &line); err != nil || line.GroupName == "" {
			s.logger.Debug().Str("line", msg).Msg("skipping malformed membership line")
			continue
		}

		g, ok := byName[line.GroupName]
		if !ok {
			g = &Group{Name: line.GroupName}
			byName[line.GroupName] = g
			order = append(order, line.GroupName)
		}
		g.Users = appendMissing(g.Users, line.Users)
		g.SubGroups = appendMissing(g.SubGroups, line.Groups)
	}

	groups := make([]Group, 0, len(order))
	for _, name := range order {
		groups = append(groups, *byName[name])
	}
	return groups, nil
}

// ACLDocuments drains the sync log over the buffered job window and folds
// repeated document entries by document id, ACL entry order preserved.
func (s *Service) ACLDocuments(ctx context.Context, logGroup string, jobStart, jobEnd time.Time) ([]ACLDocument, error) {
	messages, err := s.drainWindow(ctx, logGroup, jobStart, jobEnd)
	if err != nil {
		return nil, err
	}

	var order []string
	byID := map[string]*ACLDocument{}
	for _, msg := range messages {
		var line aclLine
		if err := json.Unmarshal([]byte(msg), &line); err != nil || line.DocumentID == "" {
			s.logger.Debug().Str("line", msg).Msg("skipping malformed acl line")
			continue
		}

		doc, ok := byID[line.DocumentID]
		if !ok {
			doc = &ACLDocument{DocumentID: line.DocumentID}
			byID[line.DocumentID] = doc
			order = append(order, line.DocumentID)
		}
		if doc.DocumentTitle == "" {
			doc.DocumentTitle = line.DocumentTitle
		}
		doc.ACLEntries = append(doc.ACLEntries, line.ACL...)
	}

	docs := make([]ACLDocument, 0, len(order))
	for _, id := range order {
		docs = append(docs, *byID[id])
	}
	return docs, nil
}

// SyncErrors drains the sync log over the buffered job window and returns
// the error-level lines, reshaped.
func (s *Service) SyncErrors(ctx context.Context, logGroup string, jobStart, jobEnd time.Time) ([]SyncError, error) {
	events, err := s.drainWindowEvents(ctx, logGroup, jobStart, jobEnd)
	if err != nil {
		return nil, err
	}

	var errorsOut []SyncError
	for _, ev := range events {
		var line syncErrorLine
		if err := json.Unmarshal([]byte(aws.ToString(ev.Message)), &line); err != nil {
			s.logger.Debug().Msg("skipping malformed sync-error line")
			continue
		}
		if line.LogLevel != "" && line.LogLevel != "ERROR" {
			continue
		}
		if line.ErrorMessage == "" {
			continue
		}
		errorsOut = append(errorsOut, SyncError{
			DocumentID:   line.DocumentID,
			ErrorCode:    line.ErrorCode,
			ErrorMessage: line.ErrorMessage,
			Timestamp:    fmtMillis(ev.Timestamp),
		})
	}
	return errorsOut, nil
}

func (s *Service) drainWindow(ctx context.Context, logGroup string, jobStart, jobEnd time.Time) ([]string, error) {
	events, err := s.drainWindowEvents(ctx, logGroup, jobStart, jobEnd)
	if err != nil {
		return nil, err
	}
	messages := make([]string, 0, len(events))
	for _, ev := range events {
		messages = append(messages, aws.ToString(ev.Message))
	}
	return messages, nil
}

func (s *Service) drainWindowEvents(ctx context.Context, logGroup string, jobStart, jobEnd time.Time) ([]filteredEvent, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(logGroup),
		StartTime:    aws.Int64(jobStart.Add(-syncWindowBuffer).UnixMilli()),
		EndTime:      aws.Int64(jobEnd.Add(syncWindowBuffer).UnixMilli()),
	}

	var events []filteredEvent
	for {
		out, err := s.client.FilterLogEvents(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("FilterLogEvents: %w", err)
		}
		for _, ev := range out.Events {
			events = append(events, filteredEvent{Message: ev.Message, Timestamp: ev.Timestamp})
		}
		if out.NextToken == nil {
			return events, nil
		}
		input.NextToken = out.NextToken
	}
}

type filteredEvent struct {
	Message   *string
	Timestamp *int64
}

func appendMissing(dst []string, values []string) []string {
	for _, v := range values {
		seen := false
		for _, existing := range dst {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}
