package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qbiz-tools/qconsole/internal/qbusiness"
)

func (s *Server) qbusinessService(c *gin.Context, sessionID string) *qbusiness.Service {
	cfg := s.resolve(c, sessionID)
	return qbusiness.NewService(s.clients.QBusiness(cfg), s.logger)
}

func (s *Server) handleListApplications(c *gin.Context) {
	apps, err := s.qbusinessService(c, "").ListApplications(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (s *Server) handleListIndices(c *gin.Context) {
	indices, err := s.qbusinessService(c, "").ListIndices(c.Request.Context(), c.Param("applicationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indices": indices})
}

func (s *Server) handleListPlugins(c *gin.Context) {
	plugins, err := s.qbusinessService(c, "").ListPlugins(c.Request.Context(), c.Param("applicationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plugins": plugins})
}

func (s *Server) handleListDataSources(c *gin.Context) {
	sources, err := s.qbusinessService(c, "").ListDataSources(
		c.Request.Context(), c.Param("applicationId"), c.Param("indexId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataSources": sources})
}

func (s *Server) handleListSyncJobs(c *gin.Context) {
	jobs, err := s.qbusinessService(c, "").ListSyncJobs(
		c.Request.Context(), c.Param("applicationId"), c.Param("indexId"), c.Param("dataSourceId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"syncJobs": jobs})
}

func (s *Server) handleSyncJobMetrics(c *gin.Context) {
	metrics, err := s.qbusinessService(c, "").SyncJobMetrics(
		c.Request.Context(), c.Param("applicationId"), c.Param("indexId"),
		c.Param("dataSourceId"), c.Param("executionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		missingField(c, "q")
		return
	}
	maxResults := int32(10)
	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxResults must be a positive integer"})
			return
		}
		maxResults = int32(n)
	}

	results, err := s.qbusinessService(c, "").Search(
		c.Request.Context(), c.Param("applicationId"), c.Query("retrieverId"), query, maxResults)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type checkAccessRequest struct {
	IndexID    string `json:"indexId"`
	UserID     string `json:"userId"`
	DocumentID string `json:"documentId"`
	SessionID  string `json:"sessionId"`
}

func (s *Server) handleCheckAccess(c *gin.Context) {
	var req checkAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch {
	case req.IndexID == "":
		missingField(c, "indexId")
		return
	case req.UserID == "":
		missingField(c, "userId")
		return
	case req.DocumentID == "":
		missingField(c, "documentId")
		return
	}

	check, err := s.qbusinessService(c, req.SessionID).CheckAccess(
		c.Request.Context(), c.Param("applicationId"), req.IndexID, req.UserID, req.DocumentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

type chatRequest struct {
	ApplicationID   string                     `json:"applicationId"`
	UserMessage     string                     `json:"userMessage"`
	ConversationID  string                     `json:"conversationId"`
	ParentMessageID string                     `json:"parentMessageId"`
	AttributeFilter *qbusiness.AttributeFilter `json:"attributeFilter"`
	PluginID        string                     `json:"pluginId"`
	SessionID       string                     `json:"sessionId"`
}

// validateChat enforces required fields and the retrieval/plugin mode
// exclusivity. Returns false after writing the response when invalid.
func validateChat(c *gin.Context, req chatRequest) bool {
	if req.ApplicationID == "" {
		missingField(c, "applicationId")
		return false
	}
	if req.UserMessage == "" {
		missingField(c, "userMessage")
		return false
	}
	if req.AttributeFilter != nil && req.PluginID != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attributeFilter and pluginId are mutually exclusive"})
		return false
	}
	return true
}

func (req chatRequest) domain() qbusiness.ChatRequest {
	return qbusiness.ChatRequest{
		ApplicationID:   req.ApplicationID,
		UserMessage:     req.UserMessage,
		ConversationID:  req.ConversationID,
		ParentMessageID: req.ParentMessageID,
		AttributeFilter: req.AttributeFilter,
		PluginID:        req.PluginID,
	}
}

func (s *Server) handleChatSync(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !validateChat(c, req) {
		return
	}

	reply, err := s.qbusinessService(c, req.SessionID).ChatSync(c.Request.Context(), req.domain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !validateChat(c, req) {
		return
	}

	svc := s.qbusinessService(c, req.SessionID)
	sink, err := newSSESink(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The relay owns frame emission from here on: it terminates the stream
	// with a complete or error frame in every case.
	if err := svc.StreamChat(c.Request.Context(), req.domain(), sink); err != nil {
		s.logger.Warn().Err(err).Str("applicationId", req.ApplicationID).Msg("chat stream ended with error")
	}
}
