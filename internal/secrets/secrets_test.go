package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

type fakeSecrets struct {
	value string
	err   error
	gotID string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, p *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.gotID = aws.ToString(p.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &f.value}, nil
}

func TestCognitoDecodesSecret(t *testing.T) {
	fake := &fakeSecrets{value: `{"userPoolId":"us-east-1_abc","clientId":"client-1","domain":"auth.example.com","unknown":"ignored"}`}
	svc := NewService(fake, "qconsole/cognito", zerolog.Nop())

	cfg, err := svc.Cognito(context.Background())
	if err != nil {
		t.Fatalf("cognito: %v", err)
	}
	if fake.gotID != "qconsole/cognito" {
		t.Errorf("secret id = %s", fake.gotID)
	}
	if cfg.UserPoolID != "us-east-1_abc" || cfg.ClientID != "client-1" || cfg.Domain != "auth.example.com" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestCognitoRejectsIncompleteSecret(t *testing.T) {
	svc := NewService(&fakeSecrets{value: `{"domain":"auth.example.com"}`}, "s", zerolog.Nop())
	if _, err := svc.Cognito(context.Background()); err == nil {
		t.Fatal("expected error for missing pool and client ids")
	}
}

func TestCognitoPropagatesFetchError(t *testing.T) {
	svc := NewService(&fakeSecrets{err: errors.New("denied")}, "s", zerolog.Nop())
	if _, err := svc.Cognito(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestCognitoRejectsMalformedJSON(t *testing.T) {
	svc := NewService(&fakeSecrets{value: "not json"}, "s", zerolog.Nop())
	if _, err := svc.Cognito(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
