package httpapi

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qbiz-tools/qconsole/internal/storage"
)

func (s *Server) storageService(c *gin.Context, sessionID string) *storage.Service {
	cfg := s.resolve(c, sessionID)
	return storage.NewService(s.clients.S3(cfg), s.logger)
}

type uploadRequest struct {
	BucketName  string `json:"bucketName"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"` // "base64" for binary payloads
	SessionID   string `json:"sessionId"`
}

func (s *Server) handleUpload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch {
	case req.BucketName == "":
		missingField(c, "bucketName")
		return
	case req.Key == "":
		missingField(c, "key")
		return
	case req.Content == "":
		missingField(c, "content")
		return
	}

	body := []byte(req.Content)
	if req.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is not valid base64"})
			return
		}
		body = decoded
	}

	if err := s.storageService(c, req.SessionID).Upload(
		c.Request.Context(), req.BucketName, req.Key, req.ContentType, body); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bucketName": req.BucketName, "key": req.Key})
}

func (s *Server) handleBucketExists(c *gin.Context) {
	bucket := c.Query("bucketName")
	if bucket == "" {
		missingField(c, "bucketName")
		return
	}
	exists, err := s.storageService(c, "").BucketExists(c.Request.Context(), bucket)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

type bucketRequest struct {
	BucketName string `json:"bucketName"`
	Region     string `json:"region"`
	Origin     string `json:"origin"`
	SessionID  string `json:"sessionId"`
}

func (s *Server) bindBucket(c *gin.Context) (bucketRequest, bool) {
	var req bucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}
	if req.BucketName == "" {
		missingField(c, "bucketName")
		return req, false
	}
	if req.Region == "" {
		req.Region = s.cfg.Region
	}
	return req, true
}

func (s *Server) handleCreateBucket(c *gin.Context) {
	req, ok := s.bindBucket(c)
	if !ok {
		return
	}
	if err := s.storageService(c, req.SessionID).CreateBucket(c.Request.Context(), req.BucketName, req.Region); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bucketName": req.BucketName})
}

func (s *Server) handleSetCORS(c *gin.Context) {
	req, ok := s.bindBucket(c)
	if !ok {
		return
	}
	if err := s.storageService(c, req.SessionID).SetCORS(c.Request.Context(), req.BucketName, req.Origin); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bucketName": req.BucketName})
}

func (s *Server) handleEnsureBucket(c *gin.Context) {
	req, ok := s.bindBucket(c)
	if !ok {
		return
	}
	created, err := s.storageService(c, req.SessionID).EnsureBucket(
		c.Request.Context(), req.BucketName, req.Region, req.Origin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bucketName": req.BucketName, "created": created})
}

func (s *Server) handleListObjects(c *gin.Context) {
	bucket := c.Query("bucketName")
	if bucket == "" {
		missingField(c, "bucketName")
		return
	}
	objects, err := s.storageService(c, "").ListObjects(c.Request.Context(), bucket, c.Query("prefix"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects})
}

func (s *Server) handleGetObject(c *gin.Context) {
	bucket, key, ok := objectParams(c)
	if !ok {
		return
	}
	body, contentType, err := s.storageService(c, "").GetObject(c.Request.Context(), bucket, key)
	if err != nil {
		writeError(c, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, body)
}

func (s *Server) handleGetObjectJSON(c *gin.Context) {
	bucket, key, ok := objectParams(c)
	if !ok {
		return
	}
	doc, err := s.storageService(c, "").GetObjectJSON(c.Request.Context(), bucket, key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func objectParams(c *gin.Context) (string, string, bool) {
	bucket := c.Query("bucketName")
	if bucket == "" {
		missingField(c, "bucketName")
		return "", "", false
	}
	key := c.Query("key")
	if key == "" {
		missingField(c, "key")
		return "", "", false
	}
	return bucket, key, true
}
