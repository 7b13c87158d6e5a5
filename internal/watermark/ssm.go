package watermark

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMStore keeps the watermark in AWS Systems Manager Parameter Store.
type SSMStore struct {
	api ssmAPI
}

func NewSSMStore(awsCfg aws.Config) *SSMStore {
	return &SSMStore{api: ssm.NewFromConfig(awsCfg)}
}

func newSSMStoreWithAPI(api ssmAPI) *SSMStore {
	return &SSMStore{api: api}
}

func (s *SSMStore) Get(ctx context.Context, key, def string) (string, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(key),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return def, nil
		}
		return "", fmt.Errorf("get parameter %s: %w", key, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return def, nil
	}
	return *out.Parameter.Value, nil
}

func (s *SSMStore) Set(ctx context.Context, key, value string) error {
	_, err := s.api.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(key),
		Value:     aws.String(value),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("put parameter %s: %w", key, err)
	}
	return nil
}
