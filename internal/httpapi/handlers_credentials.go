package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type exchangeRequest struct {
	IDToken string `json:"idToken"`
}

func (s *Server) handleExchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.IDToken == "" {
		missingField(c, "idToken")
		return
	}

	result, err := s.exchanger.Exchange(c.Request.Context(), req.IDToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type anonymousRequest struct {
	RoleARN string `json:"roleArn"`
}

func (s *Server) handleAnonymous(c *gin.Context) {
	var req anonymousRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	result, err := s.exchanger.ExchangeForAnonymousAccess(c.Request.Context(), req.RoleARN)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":   result.SessionID,
		"credentials": result.Credentials,
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	rec, err := s.exchanger.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":      rec.SessionID,
		"createdAt":      rec.CreatedAt,
		"expiry":         rec.Expiry,
		"additionalData": rec.AdditionalData,
	})
}

func (s *Server) handleValidateSession(c *gin.Context) {
	valid := s.exchanger.IsSessionValid(c.Request.Context(), c.Param("sessionId"))
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}
