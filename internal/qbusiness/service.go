// Package qbusiness wraps the Amazon Q Business API calls behind the console
// endpoints, reshaping SDK responses into plain transfer shapes.
package qbusiness

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness/types"
	"github.com/rs/zerolog"
)

// API is the subset of the Q Business client the service needs.
type API interface {
	ListApplications(ctx context.Context, params *qbusiness.ListApplicationsInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ListApplicationsOutput, error)
	ListIndices(ctx context.Context, params *qbusiness.ListIndicesInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ListIndicesOutput, error)
	ListDataSources(ctx context.Context, params *qbusiness.ListDataSourcesInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ListDataSourcesOutput, error)
	ListDataSourceSyncJobs(ctx context.Context, params *qbusiness.ListDataSourceSyncJobsInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ListDataSourceSyncJobsOutput, error)
	ListPlugins(ctx context.Context, params *qbusiness.ListPluginsInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ListPluginsOutput, error)
	ListRetrievers(ctx context.Context, params *qbusiness.ListRetrieversInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ListRetrieversOutput, error)
	SearchRelevantContent(ctx context.Context, params *qbusiness.SearchRelevantContentInput, optFns ...func(*qbusiness.Options)) (*qbusiness.SearchRelevantContentOutput, error)
	CheckDocumentAccess(ctx context.Context, params *qbusiness.CheckDocumentAccessInput, optFns ...func(*qbusiness.Options)) (*qbusiness.CheckDocumentAccessOutput, error)
	ChatSync(ctx context.Context, params *qbusiness.ChatSyncInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ChatSyncOutput, error)
	Chat(ctx context.Context, params *qbusiness.ChatInput, optFns ...func(*qbusiness.Options)) (*qbusiness.ChatOutput, error)
}

var _ API = (*qbusiness.Client)(nil)

// Service wraps a per-request Q Business client.
type Service struct {
	client API
	logger zerolog.Logger
}

// NewService creates a service around a client.
func NewService(client API, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Application is the reshaped application summary.
type Application struct {
	ID        string `json:"applicationId"`
	Name      string `json:"displayName"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Index is the reshaped index summary.
type Index struct {
	ID        string `json:"indexId"`
	Name      string `json:"displayName"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// DataSource is the reshaped data source summary.
type DataSource struct {
	ID        string `json:"dataSourceId"`
	Name      string `json:"displayName"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// SyncJob is a reshaped data source sync job.
type SyncJob struct {
	ExecutionID  string `json:"executionId"`
	Status       string `json:"status"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// SyncJobMetrics flattens a sync job's document counters and adds derived
// rates.
type SyncJobMetrics struct {
	ExecutionID       string  `json:"executionId"`
	DocumentsAdded    int64   `json:"documentsAdded"`
	DocumentsModified int64   `json:"documentsModified"`
	DocumentsDeleted  int64   `json:"documentsDeleted"`
	DocumentsFailed   int64   `json:"documentsFailed"`
	DocumentsScanned  int64   `json:"documentsScanned"`
	FailureRate       float64 `json:"failureRatePercent"`
	SuccessRate       float64 `json:"successRatePercent"`
}

// Plugin is a reshaped plugin summary.
type Plugin struct {
	ID          string `json:"pluginId"`
	Name        string `json:"displayName"`
	Type        string `json:"type"`
	State       string `json:"state"`
	BuildStatus string `json:"buildStatus"`
	ServerURL   string `json:"serverUrl,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// SearchResult is a reshaped relevant-content hit.
type SearchResult struct {
	Content       string `json:"content,omitempty"`
	DocumentID    string `json:"documentId"`
	DocumentTitle string `json:"documentTitle,omitempty"`
	DocumentURI   string `json:"documentUri,omitempty"`
	Confidence    string `json:"confidence,omitempty"`
}

// AccessCheck is the reshaped result of a document access check.
type AccessCheck struct {
	HasAccess   bool     `json:"hasAccess"`
	UserAliases []string `json:"userAliases,omitempty"`
	UserGroups  []string `json:"userGroups,omitempty"`
	DocumentACL any      `json:"documentAcl,omitempty"`
}

// ListApplications drains all pages of applications.
func (s *Service) ListApplications(ctx context.Context) ([]Application, error) {
	var apps []Application
	var next *string
	for {
		out, err := s.client.ListApplications(ctx, &qbusiness.ListApplicationsInput{NextToken: next})
		if err != nil {
			return nil, fmt.Errorf("ListApplications: %w", err)
		}
		for _, a := range out.Applications {
			apps = append(apps, Application{
				ID:        aws.ToString(a.ApplicationId),
				Name:      aws.ToString(a.DisplayName),
				Status:    string(a.Status),
				CreatedAt: fmtTime(a.CreatedAt),
				UpdatedAt: fmtTime(a.UpdatedAt),
			})
		}
		if out.NextToken == nil {
			return apps, nil
		}
		next = out.NextToken
	}
}

// ListIndices drains all pages of an application's indices.
func (s *Service) ListIndices(ctx context.Context, applicationID string) ([]Index, error) {
	var indices []Index
	var next *string
	for {
		out, err := s.client.ListIndices(ctx, &qbusiness.ListIndicesInput{
			ApplicationId: aws.String(applicationID),
			NextToken:     next,
		})
		if err != nil {
			return nil, fmt.Errorf("ListIndices: %w", err)
		}
		for _, idx := range out.Indices {
			indices = append(indices, Index{
				ID:        aws.ToString(idx.IndexId),
				Name:      aws.ToString(idx.DisplayName),
				Status:    string(idx.Status),
				CreatedAt: fmtTime(idx.CreatedAt),
				UpdatedAt: fmtTime(idx.UpdatedAt),
			})
		}
		if out.NextToken == nil {
			return indices, nil
		}
		next = out.NextToken
	}
}

// ListDataSources drains all pages of an index's data sources.
func (s *Service) ListDataSources(ctx context.Context, applicationID, indexID string) ([]DataSource, error) {
	var sources []DataSource
	var next *string
	for {
		out, err := s.client.ListDataSources(ctx, &qbusiness.ListDataSourcesInput{
			ApplicationId: aws.String(applicationID),
			IndexId:       aws.String(indexID),
			NextToken:     next,
		})
		if err != nil {
			return nil, fmt.Errorf("ListDataSources: %w", err)
		}
		for _, ds := range out.DataSources {
			sources = append(sources, DataSource{
				ID:        aws.ToString(ds.DataSourceId),
				Name:      aws.ToString(ds.DisplayName),
				Type:      aws.ToString(ds.Type),
				Status:    string(ds.Status),
				CreatedAt: fmtTime(ds.CreatedAt),
				UpdatedAt: fmtTime(ds.UpdatedAt),
			})
		}
		if out.NextToken == nil {
			return sources, nil
		}
		next = out.NextToken
	}
}

// ListSyncJobs drains the sync job history of a data source.
func (s *Service) ListSyncJobs(ctx context.Context, applicationID, indexID, dataSourceID string) ([]SyncJob, error) {
	history, err := s.syncJobHistory(ctx, applicationID, indexID, dataSourceID)
	if err != nil {
		return nil, err
	}

	jobs := make([]SyncJob, 0, len(history))
	for _, j := range history {
		job := SyncJob{
			ExecutionID: aws.ToString(j.ExecutionId),
			Status:      string(j.Status),
			StartTime:   fmtTime(j.StartTime),
			EndTime:     fmtTime(j.EndTime),
			ErrorCode:   aws.ToString(j.DataSourceErrorCode),
		}
		if j.Error != nil {
			job.ErrorMessage = aws.ToString(j.Error.ErrorMessage)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SyncJobMetrics flattens the document counters of one sync job execution and
// computes derived success/failure percentages.
func (s *Service) SyncJobMetrics(ctx context.Context, applicationID, indexID, dataSourceID, executionID string) (*SyncJobMetrics, error) {
	history, err := s.syncJobHistory(ctx, applicationID, indexID, dataSourceID)
	if err != nil {
		return nil, err
	}

	for _, j := range history {
		if aws.ToString(j.ExecutionId) != executionID {
			continue
		}
		m := &SyncJobMetrics{ExecutionID: executionID}
		if j.Metrics != nil {
			m.DocumentsAdded = parseCount(j.Metrics.DocumentsAdded)
			m.DocumentsModified = parseCount(j.Metrics.DocumentsModified)
			m.DocumentsDeleted = parseCount(j.Metrics.DocumentsDeleted)
			m.DocumentsFailed = parseCount(j.Metrics.DocumentsFailed)
			m.DocumentsScanned = parseCount(j.Metrics.DocumentsScanned)
		}
		if m.DocumentsScanned > 0 {
			m.FailureRate = float64(m.DocumentsFailed) / float64(m.DocumentsScanned) * 100
			m.SuccessRate = 100 - m.FailureRate
		}
		return m, nil
	}
	return nil, fmt.Errorf("sync job %s not found", executionID)
}

func (s *Service) syncJobHistory(ctx context.Context, applicationID, indexID, dataSourceID string) ([]types.DataSourceSyncJob, error) {
	var history []types.DataSourceSyncJob
	var next *string
	for {
		out, err := s.client.ListDataSourceSyncJobs(ctx, &qbusiness.ListDataSourceSyncJobsInput{
			ApplicationId: aws.String(applicationID),
			IndexId:       aws.String(indexID),
			DataSourceId:  aws.String(dataSourceID),
			NextToken:     next,
		})
		if err != nil {
			return nil, fmt.Errorf("ListDataSourceSyncJobs: %w", err)
		}
		history = append(history, out.History...)
		if out.NextToken == nil {
			return history, nil
		}
		next = out.NextToken
	}
}

// ListPlugins drains all pages of an application's plugins.
func (s *Service) ListPlugins(ctx context.Context, applicationID string) ([]Plugin, error) {
	var plugins []Plugin
	var next *string
	for {
		out, err := s.client.ListPlugins(ctx, &qbusiness.ListPluginsInput{
			ApplicationId: aws.String(applicationID),
			NextToken:     next,
		})
		if err != nil {
			return nil, fmt.Errorf("ListPlugins: %w", err)
		}
		for _, p := range out.Plugins {
			plugins = append(plugins, Plugin{
				ID:          aws.ToString(p.PluginId),
				Name:        aws.ToString(p.DisplayName),
				Type:        string(p.Type),
				State:       string(p.State),
				BuildStatus: string(p.BuildStatus),
				ServerURL:   aws.ToString(p.ServerUrl),
				CreatedAt:   fmtTime(p.CreatedAt),
			})
		}
		if out.NextToken == nil {
			return plugins, nil
		}
		next = out.NextToken
	}
}

// Search runs a relevant-content search against a retriever. When no
// retriever id is supplied the application's first retriever is used.
func (s *Service) Search(ctx context.Context, applicationID, retrieverID, query string, maxResults int32) ([]SearchResult, error) {
	if retrieverID == "" {
		out, err := s.client.ListRetrievers(ctx, &qbusiness.ListRetrieversInput{
			ApplicationId: aws.String(applicationID),
		})
		if err != nil {
			return nil, fmt.Errorf("ListRetrievers: %w", err)
		}
		if len(out.Retrievers) == 0 {
			return nil, fmt.Errorf("application %s has no retriever", applicationID)
		}
		retrieverID = aws.ToString(out.Retrievers[0].RetrieverId)
	}

	if maxResults <= 0 {
		maxResults = 10
	}

	out, err := s.client.SearchRelevantContent(ctx, &qbusiness.SearchRelevantContentInput{
		ApplicationId: aws.String(applicationID),
		QueryText:     aws.String(query),
		MaxResults:    aws.Int32(maxResults),
		ContentSource: &types.ContentSourceMemberRetriever{
			Value: types.RetrieverContentSource{RetrieverId: aws.String(retrieverID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("SearchRelevantContent: %w", err)
	}

	results := make([]SearchResult, 0, len(out.RelevantContent))
	for _, rc := range out.RelevantContent {
		r := SearchResult{
			Content:       aws.ToString(rc.Content),
			DocumentID:    aws.ToString(rc.DocumentId),
			DocumentTitle: aws.ToString(rc.DocumentTitle),
			DocumentURI:   aws.ToString(rc.DocumentUri),
		}
		if rc.ScoreAttributes != nil {
			r.Confidence = string(rc.ScoreAttributes.ScoreConfidence)
		}
		results = append(results, r)
	}
	return results, nil
}

// CheckAccess checks whether a user can access a document.
func (s *Service) CheckAccess(ctx context.Context, applicationID, indexID, userID, documentID string) (*AccessCheck, error) {
	out, err := s.client.CheckDocumentAccess(ctx, &qbusiness.CheckDocumentAccessInput{
		ApplicationId: aws.String(applicationID),
		IndexId:       aws.String(indexID),
		UserId:        aws.String(userID),
		DocumentId:    aws.String(documentID),
	})
	if err != nil {
		return nil, fmt.Errorf("CheckDocumentAccess: %w", err)
	}

	check := &AccessCheck{
		HasAccess:   aws.ToBool(out.HasAccess),
		DocumentACL: out.DocumentAcl,
	}
	for _, u := range out.UserAliases {
		check.UserAliases = append(check.UserAliases, aws.ToString(u.Id))
	}
	for _, g := range out.UserGroups {
		check.UserGroups = append(check.UserGroups, aws.ToString(g.Name))
	}
	return check, nil
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseCount(s *string) int64 {
	if s == nil {
		return 0
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
