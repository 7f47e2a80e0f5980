package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qbiz-tools/qconsole/internal/evaluation"
	"github.com/qbiz-tools/qconsole/internal/secrets"
)

func (s *Server) evaluationService(c *gin.Context, sessionID string) *evaluation.Service {
	cfg := s.resolve(c, sessionID)
	return evaluation.NewService(s.clients.Bedrock(cfg), s.logger)
}

type createEvaluationRequest struct {
	JobName      string   `json:"jobName"`
	RoleARN      string   `json:"roleArn"`
	ModelID      string   `json:"modelId"`
	DatasetS3URI string   `json:"datasetS3Uri"`
	OutputS3URI  string   `json:"outputS3Uri"`
	TaskType     string   `json:"taskType"`
	MetricNames  []string `json:"metricNames"`
	SessionID    string   `json:"sessionId"`
}

func (s *Server) handleCreateEvaluation(c *gin.Context) {
	var req createEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch {
	case req.JobName == "":
		missingField(c, "jobName")
		return
	case req.RoleARN == "":
		missingField(c, "roleArn")
		return
	case req.ModelID == "":
		missingField(c, "modelId")
		return
	case req.DatasetS3URI == "":
		missingField(c, "datasetS3Uri")
		return
	case req.OutputS3URI == "":
		missingField(c, "outputS3Uri")
		return
	}

	arn, err := s.evaluationService(c, req.SessionID).Create(c.Request.Context(), evaluation.JobSpec{
		JobName:      req.JobName,
		RoleARN:      req.RoleARN,
		ModelID:      req.ModelID,
		DatasetS3URI: req.DatasetS3URI,
		OutputS3URI:  req.OutputS3URI,
		TaskType:     req.TaskType,
		MetricNames:  req.MetricNames,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobArn": arn})
}

func (s *Server) handleEvaluationStatus(c *gin.Context) {
	jobARN := c.Query("jobArn")
	if jobARN == "" {
		missingField(c, "jobArn")
		return
	}
	job, err := s.evaluationService(c, "").Status(c.Request.Context(), jobARN)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	jobs, err := s.evaluationService(c, "").List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleCognitoConfig(c *gin.Context) {
	cfg := s.resolve(c, "")
	svc := secrets.NewService(s.clients.SecretsManager(cfg), s.cfg.CognitoSecretName, s.logger)
	cognito, err := svc.Cognito(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cognito)
}
