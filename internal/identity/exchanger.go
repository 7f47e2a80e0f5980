// Package identity converts an externally issued identity token, or a fixed
// role ARN, into a persisted session holding temporary AWS credentials.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/google/uuid"
	"github.com/qbiz-tools/qconsole/internal/session"
	"github.com/rs/zerolog"
)

const (
	// Token-exchange grant used against the Identity Center application.
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// Context provider for identity-aware role assumptions.
	identityCenterProviderARN = "arn:aws:iam::aws:contextProvider/IdentityCenter"

	// Claim in the Identity Center token carrying the STS context assertion.
	identityContextClaim = "sts:identity_context"

	sessionDurationSeconds = 3600
)

// Configuration errors surfaced before any AWS call is attempted.
var (
	ErrFederationNotConfigured = errors.New("identity federation is not configured (idc_application_arn and exchange_role_arn required)")
	ErrNoRoleConfigured        = errors.New("no role ARN supplied and no anonymous role configured")
)

// OIDCAPI is the subset of the SSO OIDC client the exchanger needs.
type OIDCAPI interface {
	CreateTokenWithIAM(ctx context.Context, params *ssooidc.CreateTokenWithIAMInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenWithIAMOutput, error)
}

// STSAPI is the subset of the STS client the exchanger needs.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

var (
	_ OIDCAPI = (*ssooidc.Client)(nil)
	_ STSAPI  = (*sts.Client)(nil)
)

// Config holds the federation settings for the exchanger.
type Config struct {
	IdcApplicationARN string
	ExchangeRoleARN   string
	AnonymousRoleARN  string
}

// Credentials is the credential snapshot returned to callers alongside the
// session id.
type Credentials struct {
	AccessKeyID     string     `json:"accessKeyId"`
	SecretAccessKey string     `json:"secretAccessKey"`
	SessionToken    string     `json:"sessionToken,omitempty"`
	Expiration      *time.Time `json:"expiration,omitempty"`
}

// UserInfo carries display claims decoded from the caller's identity token.
type UserInfo struct {
	Sub   string `json:"sub,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ExchangeResult is the outcome of a successful token exchange.
type ExchangeResult struct {
	SessionID   string      `json:"sessionId"`
	Credentials Credentials `json:"credentials"`
	UserInfo    UserInfo    `json:"userInfo"`
}

// Exchanger performs the identity-federation chain and persists sessions.
type Exchanger struct {
	oidc   OIDCAPI
	sts    STSAPI
	store  session.Store
	cfg    Config
	logger zerolog.Logger
}

// NewExchanger creates an exchanger.
func NewExchanger(oidc OIDCAPI, stsClient STSAPI, store session.Store, cfg Config, logger zerolog.Logger) *Exchanger {
	return &Exchanger{
		oidc:   oidc,
		sts:    stsClient,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Exchange trades an identity token for temporary AWS credentials through
// the Identity Center token-exchange grant followed by an identity-context
// role assumption, then persists the session. Any failure aborts the whole
// exchange; no partial session is ever written.
func (e *Exchanger) Exchange(ctx context.Context, idToken string) (*ExchangeResult, error) {
	if idToken == "" {
		return nil, fmt.Errorf("idToken is required")
	}
	if e.cfg.IdcApplicationARN == "" || e.cfg.ExchangeRoleARN == "" {
		return nil, ErrFederationNotConfigured
	}

	claims := DecodeClaims(idToken)
	userInfo := UserInfo{
		Sub:   claimString(claims, "sub"),
		Email: claimString(claims, "email"),
		Name:  claimString(claims, "name"),
	}

	sessionID := uuid.New().String()

	tokenOut, err := e.oidc.CreateTokenWithIAM(ctx, &ssooidc.CreateTokenWithIAMInput{
		ClientId:  aws.String(e.cfg.IdcApplicationARN),
		GrantType: aws.String(grantTypeJWTBearer),
		Assertion: aws.String(idToken),
	})
	if err != nil {
		return nil, fmt.Errorf("exchanging identity token: %w", err)
	}

	idcClaims := DecodeClaims(aws.ToString(tokenOut.IdToken))
	identityContext := claimString(idcClaims, identityContextClaim)
	if identityContext == "" {
		return nil, fmt.Errorf("identity center token is missing the %s claim", identityContextClaim)
	}

	assumeOut, err := e.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(e.cfg.ExchangeRoleARN),
		RoleSessionName: aws.String("qconsole-" + sessionID[:8]),
		DurationSeconds: aws.Int32(sessionDurationSeconds),
		ProvidedContexts: []ststypes.ProvidedContext{
			{
				ProviderArn:      aws.String(identityCenterProviderARN),
				ContextAssertion: aws.String(identityContext),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("assuming role %s: %w", e.cfg.ExchangeRoleARN, err)
	}

	creds := credentialsFrom(assumeOut)
	additional := map[string]string{}
	if userInfo.Sub != "" {
		additional["sub"] = userInfo.Sub
	}
	if userInfo.Email != "" {
		additional["email"] = userInfo.Email
	}
	if userInfo.Name != "" {
		additional["name"] = userInfo.Name
	}

	if err := e.persist(ctx, sessionID, creds, additional); err != nil {
		return nil, err
	}

	e.logger.Info().Str("session_id", sessionID).Msg("session issued via token exchange")
	return &ExchangeResult{SessionID: sessionID, Credentials: creds, UserInfo: userInfo}, nil
}

// ExchangeForAnonymousAccess assumes a fixed role directly, with no token
// exchange, for callers without an individual identity. Missing both the
// argument and the configured default is a configuration error raised before
// any STS call.
func (e *Exchanger) ExchangeForAnonymousAccess(ctx context.Context, roleARN string) (*ExchangeResult, error) {
	if roleARN == "" {
		roleARN = e.cfg.AnonymousRoleARN
	}
	if roleARN == "" {
		return nil, ErrNoRoleConfigured
	}

	sessionID := uuid.New().String()

	assumeOut, err := e.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String("qconsole-anon-" + sessionID[:8]),
		DurationSeconds: aws.Int32(sessionDurationSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("assuming role %s: %w", roleARN, err)
	}

	creds := credentialsFrom(assumeOut)
	if err := e.persist(ctx, sessionID, creds, map[string]string{"anonymous": "true"}); err != nil {
		return nil, err
	}

	e.logger.Info().Str("session_id", sessionID).Msg("anonymous session issued")
	return &ExchangeResult{SessionID: sessionID, Credentials: creds}, nil
}

func credentialsFrom(out *sts.AssumeRoleOutput) Credentials {
	c := out.Credentials
	return Credentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretAccessKey),
		SessionToken:    aws.ToString(c.SessionToken),
		Expiration:      c.Expiration,
	}
}

func (e *Exchanger) persist(ctx context.Context, sessionID string, creds Credentials, additional map[string]string) error {
	rec := session.Record{
		SessionID:       sessionID,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Expiry:          creds.Expiration,
		CreatedAt:       time.Now().UTC(),
		AdditionalData:  additional,
	}
	if err := e.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// GetSession retrieves a persisted session by id.
func (e *Exchanger) GetSession(ctx context.Context, sessionID string) (*session.Record, error) {
	return e.store.Get(ctx, sessionID)
}

// IsSessionValid reports whether the session exists and its expiry is
// strictly in the future. A missing expiry is invalid.
func (e *Exchanger) IsSessionValid(ctx context.Context, sessionID string) bool {
	rec, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return false
	}
	return rec.Valid(time.Now())
}

// GetCredentials returns the stored credential snapshot for a session,
// uniformly reporting session.ErrNotFound on any failure.
func (e *Exchanger) GetCredentials(ctx context.Context, sessionID string) (Credentials, error) {
	rec, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return Credentials{}, session.ErrNotFound
	}
	return Credentials{
		AccessKeyID:     rec.AccessKeyID,
		SecretAccessKey: rec.SecretAccessKey,
		SessionToken:    rec.SessionToken,
		Expiration:      rec.Expiry,
	}, nil
}
