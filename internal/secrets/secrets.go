// Package secrets loads the federated-auth configuration the SPA needs to
// run its Cognito login flow. The secret is a JSON document in Secrets
// Manager so the backend never ships pool identifiers in its own config.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

// API is the subset of the Secrets Manager client the service uses.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var _ API = (*secretsmanager.Client)(nil)

// CognitoConfig is the shape of the stored secret. Only the fields the SPA
// consumes are surfaced; unknown keys in the secret are ignored.
type CognitoConfig struct {
	UserPoolID  string `json:"userPoolId"`
	ClientID    string `json:"clientId"`
	Domain      string `json:"domain"`
	Region      string `json:"region,omitempty"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

type Service struct {
	client     API
	secretName string
	logger     zerolog.Logger
}

func NewService(client API, secretName string, logger zerolog.Logger) *Service {
	return &Service{
		client:     client,
		secretName: secretName,
		logger:     logger.With().Str("component", "secrets").Logger(),
	}
}

// Cognito fetches and decodes the federated-auth secret.
func (s *Service) Cognito(ctx context.Context) (CognitoConfig, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &s.secretName})
	if err != nil {
		return CognitoConfig{}, fmt.Errorf("GetSecretValue(%s): %w", s.secretName, err)
	}

	var cfg CognitoConfig
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &cfg); err != nil {
		return CognitoConfig{}, fmt.Errorf("decoding secret %s: %w", s.secretName, err)
	}
	if cfg.UserPoolID == "" || cfg.ClientID == "" {
		return CognitoConfig{}, fmt.Errorf("secret %s missing userPoolId or clientId", s.secretName)
	}
	s.logger.Debug().Str("secret", s.secretName).Msg("loaded cognito config")
	return cfg, nil
}
