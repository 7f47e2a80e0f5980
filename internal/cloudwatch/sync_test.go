package cloudwatch

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/rs/zerolog"
)

// fakeLogs scripts FilterLogEvents pages; other calls panic.
type fakeLogs struct {
	pages   [][]types.FilteredLogEvent
	inputs  []*cloudwatchlogs.FilterLogEventsInput
	current int
}

func (f *fakeLogs) FilterLogEvents(_ context.Context, p *cloudwatchlogs.FilterLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.inputs = append(f.inputs, p)
	out := &cloudwatchlogs.FilterLogEventsOutput{Events: f.pages[f.current]}
	if f.current < len(f.pages)-1 {
		out.NextToken = aws.String("next")
		f.current++
	}
	return out, nil
}

func (f *fakeLogs) DescribeLogGroups(context.Context, *cloudwatchlogs.DescribeLogGroupsInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	panic("not scripted")
}

func (f *fakeLogs) DescribeLogStreams(context.Context, *cloudwatchlogs.DescribeLogStreamsInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	panic("not scripted")
}

func (f *fakeLogs) GetLogEvents(context.Context, *cloudwatchlogs.GetLogEventsInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error) {
	panic("not scripted")
}

func (f *fakeLogs) StartQuery(context.Context, *cloudwatchlogs.StartQueryInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error) {
	panic("not scripted")
}

func (f *fakeLogs) GetQueryResults(context.Context, *cloudwatchlogs.GetQueryResultsInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error) {
	panic("not scripted")
}

func event(msg string) types.FilteredLogEvent {
	return types.FilteredLogEvent{Message: aws.String(msg), Timestamp: aws.Int64(time.Now().UnixMilli())}
}

func TestACLDocumentsFoldByDocumentID(t *testing.T) {
	fake := &fakeLogs{pages: [][]types.FilteredLogEvent{{
		event(`{"DocumentId":"doc-1","DocumentTitle":"Runbook","Acl":[{"name":"alice","type":"USER","access":"ALLOW"}]}`),
		event(`{"DocumentId":"doc-2","Acl":[{"name":"ops","type":"GROUP","access":"ALLOW"}]}`),
		event(`{"DocumentId":"doc-1","Acl":[{"name":"bob","type":"USER","access":"DENY"}]}`),
	}}}
	svc := NewService(fake, zerolog.Nop())

	docs, err := svc.ACLDocuments(context.Background(), "/aws/qbusiness/sync", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("acl documents: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	// Order preserved: doc-1 first, with both entries in arrival order.
	if docs[0].DocumentID != "doc-1" || docs[1].DocumentID != "doc-2" {
		t.Errorf("document order = %s, %s", docs[0].DocumentID, docs[1].DocumentID)
	}
	if len(docs[0].ACLEntries) != 2 {
		t.Fatalf("doc-1 entries = %d, want 2", len(docs[0].ACLEntries))
	}
	if docs[0].ACLEntries[0].Name != "alice" || docs[0].ACLEntries[1].Name != "bob" {
		t.Errorf("entry order = %+v", docs[0].ACLEntries)
	}
	if docs[0].DocumentTitle != "Runbook" {
		t.Errorf("title = %s", docs[0].DocumentTitle)
	}
}

func TestGroupMembershipFoldSkipsMalformedLines(t *testing.T) {
	fake := &fakeLogs{pages: [][]types.FilteredLogEvent{
		{
			event(`{"GroupName":"engineering","Users":["alice"]}`),
			event(`this is not json`),
		},
		{
			event(`{"GroupName":"engineering","Users":["bob","alice"],"Groups":["platform"]}`),
			event(`{"GroupName":"sales","Users":["carol"]}`),
		},
	}}
	svc := NewService(fake, zerolog.Nop())

	groups, err := svc.GroupMembership(context.Background(), "/aws/qbusiness/sync", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("group membership: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	eng := groups[0]
	if eng.Name != "engineering" {
		t.Fatalf("first group = %s", eng.Name)
	}
	if len(eng.Users) != 2 || eng.Users[0] != "alice" || eng.Users[1] != "bob" {
		t.Errorf("users = %v, want deduplicated [alice bob]", eng.Users)
	}
	if len(eng.SubGroups) != 1 || eng.SubGroups[0] != "platform" {
		t.Errorf("subgroups = %v", eng.SubGroups)
	}
}

func TestDrainWindowAppliesBuffer(t *testing.T) {
	fake := &fakeLogs{pages: [][]types.FilteredLogEvent{{}}}
	svc := NewService(fake, zerolog.Nop())

	jobStart := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	jobEnd := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	if _, err := svc.GroupMembership(context.Background(), "lg", jobStart, jobEnd); err != nil {
		t.Fatalf("group membership: %v", err)
	}

	in := fake.inputs[0]
	wantStart := jobStart.Add(-5 * time.Minute).UnixMilli()
	wantEnd := jobEnd.Add(5 * time.Minute).UnixMilli()
	if aws.ToInt64(in.StartTime) != wantStart || aws.ToInt64(in.EndTime) != wantEnd {
		t.Errorf("window = [%d, %d], want [%d, %d]",
			aws.ToInt64(in.StartTime), aws.ToInt64(in.EndTime), wantStart, wantEnd)
	}
}

func TestSyncErrorsFiltersNonErrors(t *testing.T) {
	fake := &fakeLogs{pages: [][]types.FilteredLogEvent{{
		event(`{"DocumentId":"doc-1","ErrorCode":"AccessDenied","ErrorMessage":"forbidden","LogLevel":"ERROR"}`),
		event(`{"DocumentId":"doc-2","ErrorMessage":"crawled ok","LogLevel":"INFO"}`),
		event(`{"DocumentId":"doc-3"}`),
	}}}
	svc := NewService(fake, zerolog.Nop())

	errs, err := svc.SyncErrors(context.Background(), "lg", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("sync errors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0].DocumentID != "doc-1" || errs[0].ErrorCode != "AccessDenied" {
		t.Errorf("error = %+v", errs[0])
	}
}
