// Package secrets resolves the Meraki API key from a secret store.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrEmptySecret is returned when a secret exists but holds no string value.
var ErrEmptySecret = errors.New("secret has no string value")

// Resolver fetches a named secret's string value.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager resolves secrets from AWS Secrets Manager.
type SecretsManager struct {
	api secretsManagerAPI
}

// NewSecretsManager returns a resolver backed by the Secrets Manager client
// built from awsCfg.
func NewSecretsManager(awsCfg aws.Config) *SecretsManager {
	return &SecretsManager{api: secretsmanager.NewFromConfig(awsCfg)}
}

func newSecretsManagerWithAPI(api secretsManagerAPI) *SecretsManager {
	return &SecretsManager{api: api}
}

// Resolve returns SecretString for the secret id or ARN in ref.
func (s *SecretsManager) Resolve(ctx context.Context, ref string) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", ref, err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("get secret %s: %w", ref, ErrEmptySecret)
	}
	return *out.SecretString, nil
}

// Env resolves secrets from environment variables; ref names the variable.
// Meant for local runs where no secret store is reachable.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := e.lookup(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %s not set", ref)
	}
	if v == "" {
		return "", fmt.Errorf("environment variable %s: %w", ref, ErrEmptySecret)
	}
	return v, nil
}
