package qbusiness

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness/types"
	"github.com/rs/zerolog"
)

// fakeAPI scripts the subset of calls a test needs; unscripted calls panic.
type fakeAPI struct {
	listApplications func(*qbusiness.ListApplicationsInput) (*qbusiness.ListApplicationsOutput, error)
	listSyncJobs     func(*qbusiness.ListDataSourceSyncJobsInput) (*qbusiness.ListDataSourceSyncJobsOutput, error)
	listRetrievers   func(*qbusiness.ListRetrieversInput) (*qbusiness.ListRetrieversOutput, error)
	search           func(*qbusiness.SearchRelevantContentInput) (*qbusiness.SearchRelevantContentOutput, error)
}

func (f *fakeAPI) ListApplications(_ context.Context, p *qbusiness.ListApplicationsInput, _ ...func(*qbusiness.Options)) (*qbusiness.ListApplicationsOutput, error) {
	return f.listApplications(p)
}

func (f *fakeAPI) ListIndices(context.Context, *qbusiness.ListIndicesInput, ...func(*qbusiness.Options)) (*qbusiness.ListIndicesOutput, error) {
	panic("not scripted")
}

func (f *fakeAPI) ListDataSources(context.Context, *qbusiness.ListDataSourcesInput, ...func(*qbusiness.Options)) (*qbusiness.ListDataSourcesOutput, error) {
	panic("not scripted")
}

func (f *fakeAPI) ListDataSourceSyncJobs(_ context.Context, p *qbusiness.ListDataSourceSyncJobsInput, _ ...func(*qbusiness.Options)) (*qbusiness.ListDataSourceSyncJobsOutput, error) {
	return f.listSyncJobs(p)
}

func (f *fakeAPI) ListPlugins(context.Context, *qbusiness.ListPluginsInput, ...func(*qbusiness.Options)) (*qbusiness.ListPluginsOutput, error) {
	panic("not scripted")
}

func (f *fakeAPI) ListRetrievers(_ context.Context, p *qbusiness.ListRetrieversInput, _ ...func(*qbusiness.Options)) (*qbusiness.ListRetrieversOutput, error) {
	return f.listRetrievers(p)
}

func (f *fakeAPI) SearchRelevantContent(_ context.Context, p *qbusiness.SearchRelevantContentInput, _ ...func(*qbusiness.Options)) (*qbusiness.SearchRelevantContentOutput, error) {
	return f.search(p)
}

func (f *fakeAPI) CheckDocumentAccess(context.Context, *qbusiness.CheckDocumentAccessInput, ...func(*qbusiness.Options)) (*qbusiness.CheckDocumentAccessOutput, error) {
	panic("not scripted")
}

func (f *fakeAPI) ChatSync(context.Context, *qbusiness.ChatSyncInput, ...func(*qbusiness.Options)) (*qbusiness.ChatSyncOutput, error) {
	panic("not scripted")
}

func (f *fakeAPI) Chat(context.Context, *qbusiness.ChatInput, ...func(*qbusiness.Options)) (*qbusiness.ChatOutput, error) {
	panic("not scripted")
}

func TestListApplicationsDrainsAllPages(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeAPI{
		listApplications: func(p *qbusiness.ListApplicationsInput) (*qbusiness.ListApplicationsOutput, error) {
			if p.NextToken == nil {
				return &qbusiness.ListApplicationsOutput{
					Applications: []types.Application{{
						ApplicationId: aws.String("app-1"),
						DisplayName:   aws.String("First"),
						Status:        types.ApplicationStatusActive,
						CreatedAt:     aws.Time(created),
					}},
					NextToken: aws.String("page-2"),
				}, nil
			}
			return &qbusiness.ListApplicationsOutput{
				Applications: []types.Application{{
					ApplicationId: aws.String("app-2"),
					DisplayName:   aws.String("Second"),
					Status:        types.ApplicationStatusActive,
				}},
			}, nil
		},
	}

	apps, err := NewService(fake, zerolog.Nop()).ListApplications(context.Background())
	if err != nil {
		t.Fatalf("list applications: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d applications, want 2", len(apps))
	}
	if apps[0].ID != "app-1" || apps[1].ID != "app-2" {
		t.Errorf("apps = %+v", apps)
	}
	if apps[0].CreatedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("createdAt = %s, want ISO-8601", apps[0].CreatedAt)
	}
}

func TestSyncJobMetricsFlattening(t *testing.T) {
	fake := &fakeAPI{
		listSyncJobs: func(*qbusiness.ListDataSourceSyncJobsInput) (*qbusiness.ListDataSourceSyncJobsOutput, error) {
			return &qbusiness.ListDataSourceSyncJobsOutput{
				History: []types.DataSourceSyncJob{{
					ExecutionId: aws.String("exec-1"),
					Status:      types.DataSourceSyncJobStatusSucceeded,
					Metrics: &types.DataSourceSyncJobMetrics{
						DocumentsAdded:    aws.String("90"),
						DocumentsModified: aws.String("5"),
						DocumentsDeleted:  aws.String("0"),
						DocumentsFailed:   aws.String("10"),
						DocumentsScanned:  aws.String("100"),
					},
				}},
			}, nil
		},
	}

	m, err := NewService(fake, zerolog.Nop()).SyncJobMetrics(context.Background(), "app", "idx", "ds", "exec-1")
	if err != nil {
		t.Fatalf("sync job metrics: %v", err)
	}
	if m.DocumentsAdded != 90 || m.DocumentsScanned != 100 {
		t.Errorf("metrics = %+v", m)
	}
	if m.FailureRate != 10 || m.SuccessRate != 90 {
		t.Errorf("rates = %v/%v, want 10/90", m.FailureRate, m.SuccessRate)
	}
}

func TestSyncJobMetricsUnknownExecution(t *testing.T) {
	fake := &fakeAPI{
		listSyncJobs: func(*qbusiness.ListDataSourceSyncJobsInput) (*qbusiness.ListDataSourceSyncJobsOutput, error) {
			return &qbusiness.ListDataSourceSyncJobsOutput{}, nil
		},
	}

	_, err := NewService(fake, zerolog.Nop()).SyncJobMetrics(context.Background(), "app", "idx", "ds", "missing")
	if err == nil {
		t.Fatal("expected an error for an unknown execution id")
	}
}

func TestSearchDefaultsToFirstRetriever(t *testing.T) {
	var usedRetriever string
	fake := &fakeAPI{
		listRetrievers: func(*qbusiness.ListRetrieversInput) (*qbusiness.ListRetrieversOutput, error) {
			return &qbusiness.ListRetrieversOutput{
				Retrievers: []types.Retriever{{RetrieverId: aws.String("ret-1")}},
			}, nil
		},
		search: func(p *qbusiness.SearchRelevantContentInput) (*qbusiness.SearchRelevantContentOutput, error) {
			src := p.ContentSource.(*types.ContentSourceMemberRetriever)
			usedRetriever = aws.ToString(src.Value.RetrieverId)
			return &qbusiness.SearchRelevantContentOutput{
				RelevantContent: []types.RelevantContent{{
					DocumentId:    aws.String("doc-1"),
					DocumentTitle: aws.String("Runbook"),
				}},
			}, nil
		},
	}

	results, err := NewService(fake, zerolog.Nop()).Search(context.Background(), "app-1", "", "how to", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if usedRetriever != "ret-1" {
		t.Errorf("retriever = %s, want ret-1", usedRetriever)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-1" {
		t.Errorf("results = %+v", results)
	}
}
