package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qbiz-tools/qconsole/internal/cloudwatch"
)

func (s *Server) cloudwatchService(c *gin.Context, sessionID string) *cloudwatch.Service {
	cfg := s.resolve(c, sessionID)
	return cloudwatch.NewService(s.clients.CloudWatchLogs(cfg), s.logger)
}

func (s *Server) handleListLogGroups(c *gin.Context) {
	groups, err := s.cloudwatchService(c, "").ListLogGroups(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logGroups": groups})
}

func (s *Server) handleListLogStreams(c *gin.Context) {
	logGroup := c.Query("logGroupName")
	if logGroup == "" {
		missingField(c, "logGroupName")
		return
	}
	streams, err := s.cloudwatchService(c, "").ListLogStreams(c.Request.Context(), logGroup, queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logStreams": streams})
}

func (s *Server) handleGetLogEvents(c *gin.Context) {
	logGroup := c.Query("logGroupName")
	if logGroup == "" {
		missingField(c, "logGroupName")
		return
	}
	logStream := c.Query("logStreamName")
	if logStream == "" {
		missingField(c, "logStreamName")
		return
	}
	events, err := s.cloudwatchService(c, "").GetEvents(c.Request.Context(), logGroup, logStream, queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleValidateLogGroup(c *gin.Context) {
	logGroup := c.Query("logGroupName")
	if logGroup == "" {
		missingField(c, "logGroupName")
		return
	}
	exists, err := s.cloudwatchService(c, "").ValidateLogGroup(c.Request.Context(), logGroup)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": exists})
}

type insightsQueryRequest struct {
	LogGroupName string `json:"logGroupName"`
	Query        string `json:"query"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	SessionID    string `json:"sessionId"`
}

func (s *Server) handleInsightsQuery(c *gin.Context) {
	var req insightsQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.LogGroupName == "" {
		missingField(c, "logGroupName")
		return
	}
	if req.Query == "" {
		missingField(c, "query")
		return
	}
	start, end, ok := parseWindow(c, req.StartTime, req.EndTime, "startTime", "endTime")
	if !ok {
		return
	}

	results, err := s.cloudwatchService(c, req.SessionID).RunInsightsQuery(
		c.Request.Context(), req.LogGroupName, req.Query, start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type syncWindowRequest struct {
	LogGroupName string `json:"logGroupName"`
	JobStart     string `json:"jobStart"`
	JobEnd       string `json:"jobEnd"`
	SessionID    string `json:"sessionId"`
}

func (s *Server) bindSyncWindow(c *gin.Context) (*cloudwatch.Service, string, time.Time, time.Time, bool) {
	var req syncWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, "", time.Time{}, time.Time{}, false
	}
	if req.LogGroupName == "" {
		missingField(c, "logGroupName")
		return nil, "", time.Time{}, time.Time{}, false
	}
	start, end, ok := parseWindow(c, req.JobStart, req.JobEnd, "jobStart", "jobEnd")
	if !ok {
		return nil, "", time.Time{}, time.Time{}, false
	}
	return s.cloudwatchService(c, req.SessionID), req.LogGroupName, start, end, true
}

func (s *Server) handleGroupMembership(c *gin.Context) {
	svc, logGroup, start, end, ok := s.bindSyncWindow(c)
	if !ok {
		return
	}
	groups, err := svc.GroupMembership(c.Request.Context(), logGroup, start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) handleACLDocuments(c *gin.Context) {
	svc, logGroup, start, end, ok := s.bindSyncWindow(c)
	if !ok {
		return
	}
	docs, err := svc.ACLDocuments(c.Request.Context(), logGroup, start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleSyncErrors(c *gin.Context) {
	svc, logGroup, start, end, ok := s.bindSyncWindow(c)
	if !ok {
		return
	}
	syncErrs, err := svc.SyncErrors(c.Request.Context(), logGroup, start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": syncErrs})
}

// parseWindow decodes a required RFC3339 start/end pair, writing the 400
// itself when invalid.
func parseWindow(c *gin.Context, startRaw, endRaw, startField, endField string) (time.Time, time.Time, bool) {
	if startRaw == "" {
		missingField(c, startField)
		return time.Time{}, time.Time{}, false
	}
	if endRaw == "" {
		missingField(c, endField)
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": startField + " must be an RFC3339 timestamp"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": endField + " must be an RFC3339 timestamp"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func queryLimit(c *gin.Context) int32 {
	raw := c.Query("limit")
	if raw == "" {
		return 50
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 1 {
		return 50
	}
	return int32(n)
}
