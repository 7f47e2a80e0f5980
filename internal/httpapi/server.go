// Package httpapi is the HTTP/SSE boundary: request parsing, required-field
// validation, per-request credential resolution, and error-to-status mapping.
// Handlers stay thin; everything with behavior lives in the domain packages.
package httpapi

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/qbiz-tools/qconsole/internal/cloudwatch"
	"github.com/qbiz-tools/qconsole/internal/config"
	"github.com/qbiz-tools/qconsole/internal/credentials"
	"github.com/qbiz-tools/qconsole/internal/evaluation"
	"github.com/qbiz-tools/qconsole/internal/identity"
	"github.com/qbiz-tools/qconsole/internal/qbusiness"
	"github.com/qbiz-tools/qconsole/internal/secrets"
	"github.com/qbiz-tools/qconsole/internal/storage"
)

// Clients builds service clients from a resolved aws.Config. Tests substitute
// stubs that capture the config they were handed.
type Clients struct {
	QBusiness      func(aws.Config) qbusiness.API
	CloudWatchLogs func(aws.Config) cloudwatch.API
	S3             func(aws.Config) storage.API
	Bedrock        func(aws.Config) evaluation.API
	SecretsManager func(aws.Config) secrets.API
}

// DefaultClients wires Clients to the real SDK constructors.
func DefaultClients(factory *credentials.ClientFactory) Clients {
	return Clients{
		QBusiness:      func(cfg aws.Config) qbusiness.API { return factory.QBusiness(cfg) },
		CloudWatchLogs: func(cfg aws.Config) cloudwatch.API { return factory.CloudWatchLogs(cfg) },
		S3:             func(cfg aws.Config) storage.API { return factory.S3(cfg) },
		Bedrock:        func(cfg aws.Config) evaluation.API { return factory.Bedrock(cfg) },
		SecretsManager: func(cfg aws.Config) secrets.API { return factory.SecretsManager(cfg) },
	}
}

type Server struct {
	cfg       config.Config
	logger    zerolog.Logger
	resolver  *credentials.Resolver
	exchanger *identity.Exchanger
	clients   Clients
}

func NewServer(cfg config.Config, logger zerolog.Logger, resolver *credentials.Resolver, exchanger *identity.Exchanger, clients Clients) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "httpapi").Logger(),
		resolver:  resolver,
		exchanger: exchanger,
		clients:   clients,
	}
}

// Router assembles the gin engine with the full route table.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), corsMiddleware(s.cfg.AllowedOrigin))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	creds := api.Group("/credentials")
	creds.POST("/exchange", s.handleExchange)
	creds.POST("/anonymous", s.handleAnonymous)
	creds.GET("/session/:sessionId", s.handleGetSession)
	creds.GET("/validate/:sessionId", s.handleValidateSession)

	chat := api.Group("/chat")
	chat.POST("/sync", s.handleChatSync)
	chat.POST("/stream", s.handleChatStream)

	apps := api.Group("/applications")
	apps.GET("", s.handleListApplications)
	apps.GET("/:applicationId/indices", s.handleListIndices)
	apps.GET("/:applicationId/plugins", s.handleListPlugins)
	apps.GET("/:applicationId/indices/:indexId/datasources", s.handleListDataSources)
	apps.GET("/:applicationId/indices/:indexId/datasources/:dataSourceId/syncjobs", s.handleListSyncJobs)
	apps.GET("/:applicationId/indices/:indexId/datasources/:dataSourceId/syncjobs/:executionId/metrics", s.handleSyncJobMetrics)
	apps.GET("/:applicationId/search", s.handleSearch)
	apps.POST("/:applicationId/check-access", s.handleCheckAccess)

	cw := api.Group("/cloudwatch")
	cw.GET("/log-groups", s.handleListLogGroups)
	cw.GET("/log-streams", s.handleListLogStreams)
	cw.GET("/log-events", s.handleGetLogEvents)
	cw.GET("/validate", s.handleValidateLogGroup)
	cw.POST("/insights-query", s.handleInsightsQuery)
	cw.POST("/group-membership", s.handleGroupMembership)
	cw.POST("/acl-documents", s.handleACLDocuments)
	cw.POST("/sync-errors", s.handleSyncErrors)

	s3g := api.Group("/s3")
	s3g.POST("/upload", s.handleUpload)
	s3g.GET("/bucket-exists", s.handleBucketExists)
	s3g.POST("/create-bucket", s.handleCreateBucket)
	s3g.POST("/set-cors", s.handleSetCORS)
	s3g.POST("/ensure-bucket", s.handleEnsureBucket)
	s3g.GET("/list-objects", s.handleListObjects)
	s3g.GET("/get-object", s.handleGetObject)
	s3g.GET("/get-object-json", s.handleGetObjectJSON)

	bedrock := api.Group("/bedrock")
	bedrock.POST("/evaluations", s.handleCreateEvaluation)
	bedrock.GET("/evaluations", s.handleListEvaluations)
	bedrock.GET("/evaluations/status", s.handleEvaluationStatus)

	api.GET("/config/cognito", s.handleCognitoConfig)

	return r
}

// resolve produces a per-request aws.Config for the optional sessionId.
func (s *Server) resolve(c *gin.Context, sessionID string) aws.Config {
	if sessionID == "" {
		sessionID = c.Query("sessionId")
	}
	cfg, source := s.resolver.Resolve(c.Request.Context(), credentials.ResolveOptions{SessionID: sessionID})
	s.logger.Debug().Str("path", c.FullPath()).Str("source", string(source)).Msg("resolved request credentials")
	return cfg
}
