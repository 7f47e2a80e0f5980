// Package evaluation wraps Bedrock model-evaluation jobs used to score the
// console's chat answers against curated datasets.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/rs/zerolog"
)

// API is the subset of the Bedrock control-plane client the service uses.
type API interface {
	CreateEvaluationJob(ctx context.Context, params *bedrock.CreateEvaluationJobInput, optFns ...func(*bedrock.Options)) (*bedrock.CreateEvaluationJobOutput, error)
	GetEvaluationJob(ctx context.Context, params *bedrock.GetEvaluationJobInput, optFns ...func(*bedrock.Options)) (*bedrock.GetEvaluationJobOutput, error)
	ListEvaluationJobs(ctx context.Context, params *bedrock.ListEvaluationJobsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListEvaluationJobsOutput, error)
}

var _ API = (*bedrock.Client)(nil)

type Service struct {
	client API
	logger zerolog.Logger
}

func NewService(client API, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger.With().Str("component", "evaluation").Logger()}
}

// JobSpec describes an automated evaluation run over a JSONL dataset in S3.
type JobSpec struct {
	JobName      string
	RoleARN      string
	ModelID      string
	DatasetS3URI string
	OutputS3URI  string
	TaskType     string
	MetricNames  []string
}

// Job is the reshaped view of an evaluation job returned to the SPA.
type Job struct {
	JobARN          string   `json:"jobArn"`
	JobName         string   `json:"jobName"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	LastModifiedAt  string   `json:"lastModifiedAt,omitempty"`
	FailureMessages []string `json:"failureMessages,omitempty"`
}

// Create submits an automated evaluation job and returns its ARN.
func (s *Service) Create(ctx context.Context, spec JobSpec) (string, error) {
	taskType := types.EvaluationTaskType(spec.TaskType)
	if spec.TaskType == "" {
		taskType = types.EvaluationTaskTypeQuestionAndAnswer
	}
	metrics := spec.MetricNames
	if len(metrics) == 0 {
		metrics = []string{"Builtin.Accuracy", "Builtin.Robustness"}
	}

	out, err := s.client.CreateEvaluationJob(ctx, &bedrock.CreateEvaluationJobInput{
		JobName: &spec.JobName,
		RoleArn: &spec.RoleARN,
		EvaluationConfig: &types.EvaluationConfigMemberAutomated{
			Value: types.AutomatedEvaluationConfig{
				DatasetMetricConfigs: []types.EvaluationDatasetMetricConfig{{
					TaskType: taskType,
					Dataset: &types.EvaluationDataset{
						Name: aws.String(spec.JobName + "-dataset"),
						DatasetLocation: &types.EvaluationDatasetLocationMemberS3Uri{
							Value: spec.DatasetS3URI,
						},
					},
					MetricNames: metrics,
				}},
			},
		},
		InferenceConfig: &types.EvaluationInferenceConfigMemberModels{
			Value: []types.EvaluationModelConfig{
				&types.EvaluationModelConfigMemberBedrockModel{
					Value: types.EvaluationBedrockModel{ModelIdentifier: &spec.ModelID},
				},
			},
		},
		OutputDataConfig: &types.EvaluationOutputDataConfig{S3Uri: &spec.OutputS3URI},
	})
	if err != nil {
		return "", fmt.Errorf("CreateEvaluationJob(%s): %w", spec.JobName, err)
	}
	arn := aws.ToString(out.JobArn)
	s.logger.Info().Str("jobName", spec.JobName).Str("jobArn", arn).Msg("created evaluation job")
	return arn, nil
}

// Status fetches the current state of a job by ARN.
func (s *Service) Status(ctx context.Context, jobARN string) (Job, error) {
	out, err := s.client.GetEvaluationJob(ctx, &bedrock.GetEvaluationJobInput{JobIdentifier: &jobARN})
	if err != nil {
		return Job{}, fmt.Errorf("GetEvaluationJob(%s): %w", jobARN, err)
	}
	return Job{
		JobARN:          aws.ToString(out.JobArn),
		JobName:         aws.ToString(out.JobName),
		Status:          string(out.Status),
		CreatedAt:       fmtTime(out.CreationTime),
		LastModifiedAt:  fmtTime(out.LastModifiedTime),
		FailureMessages: out.FailureMessages,
	}, nil
}

// List drains every evaluation-job page.
func (s *Service) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	var token *string
	for {
		out, err := s.client.ListEvaluationJobs(ctx, &bedrock.ListEvaluationJobsInput{NextToken: token})
		if err != nil {
			return nil, fmt.Errorf("ListEvaluationJobs: %w", err)
		}
		for _, j := range out.JobSummaries {
			jobs = append(jobs, Job{
				JobARN:    aws.ToString(j.JobArn),
				JobName:   aws.ToString(j.JobName),
				Status:    string(j.Status),
				CreatedAt: fmtTime(j.CreationTime),
			})
		}
		if out.NextToken == nil {
			return jobs, nil
		}
		token = out.NextToken
	}
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
