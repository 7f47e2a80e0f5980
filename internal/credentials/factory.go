package credentials

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
)

// ClientFactory builds per-service AWS clients from a resolved configuration.
// The service set is fixed at the type level; there is no string-keyed lookup
// to misconfigure at request time.
type ClientFactory struct {
	logger zerolog.Logger
}

// NewClientFactory creates a client factory.
func NewClientFactory(logger zerolog.Logger) *ClientFactory {
	return &ClientFactory{logger: logger}
}

func (f *ClientFactory) QBusiness(cfg aws.Config) *qbusiness.Client {
	f.logger.Debug().Str("service", "qbusiness").Msg("building client")
	return qbusiness.NewFromConfig(cfg)
}

func (f *ClientFactory) CloudWatchLogs(cfg aws.Config) *cloudwatchlogs.Client {
	f.logger.Debug().Str("service", "cloudwatch-logs").Msg("building client")
	return cloudwatchlogs.NewFromConfig(cfg)
}

func (f *ClientFactory) S3(cfg aws.Config) *s3.Client {
	f.logger.Debug().Str("service", "s3").Msg("building client")
	return s3.NewFromConfig(cfg)
}

func (f *ClientFactory) DynamoDB(cfg aws.Config) *dynamodb.Client {
	f.logger.Debug().Str("service", "dynamodb").Msg("building client")
	return dynamodb.NewFromConfig(cfg)
}

func (f *ClientFactory) Bedrock(cfg aws.Config) *bedrock.Client {
	f.logger.Debug().Str("service", "bedrock").Msg("building client")
	return bedrock.NewFromConfig(cfg)
}

func (f *ClientFactory) SecretsManager(cfg aws.Config) *secretsmanager.Client {
	f.logger.Debug().Str("service", "secretsmanager").Msg("building client")
	return secretsmanager.NewFromConfig(cfg)
}

func (f *ClientFactory) STS(cfg aws.Config) *sts.Client {
	f.logger.Debug().Str("service", "sts").Msg("building client")
	return sts.NewFromConfig(cfg)
}

func (f *ClientFactory) SSOOIDC(cfg aws.Config) *ssooidc.Client {
	f.logger.Debug().Str("service", "sso-oidc").Msg("building client")
	return ssooidc.NewFromConfig(cfg)
}
