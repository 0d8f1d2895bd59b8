package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWS loads the shared AWS configuration for the configured region.
func (c *Config) AWS(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.AWSRegion))
}

// SecretGetter is the subset of the Secrets Manager client used here.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveDatabaseURL replaces Database.URL with the DATABASE_URL stored in
// DATABASE_SECRET_ARN. It is a no-op when no secret is configured.
func (c *Config) ResolveDatabaseURL(ctx context.Context, sm SecretGetter) error {
	if c.Database.SecretARN == "" {
		return nil
	}
	dsn, err := GetDatabaseSecret(ctx, sm, c.Database.SecretARN)
	if err != nil {
		return err
	}
	c.Database.URL = dsn
	return nil
}

// GetDatabaseSecret reads a JSON secret of the form {"DATABASE_URL": "..."}.
func GetDatabaseSecret(ctx context.Context, sm SecretGetter, secretArn string) (string, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &secretArn})
	if err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	return parseDatabaseSecret(aws.ToString(out.SecretString))
}

func parseDatabaseSecret(raw string) (string, error) {
	var payload struct {
		DatabaseURL string `json:"DATABASE_URL"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("parse secret: %w", err)
	}
	if payload.DatabaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL missing in secret")
	}
	return payload.DatabaseURL, nil
}
