package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// SecretsClient is the subset of the Secrets Manager API used here
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadEnv подтягивает секреты из AWS Secrets Manager (если задан
// AWS_SECRETS_MANAGER_SECRET_ID), затем .env файл. Уже заданные переменные
// окружения не перезаписываются. Ошибки только логируются.
func LoadEnv(ctx context.Context, logger *slog.Logger, defaultEnvPath string) {
	if secretID := os.Getenv("AWS_SECRETS_MANAGER_SECRET_ID"); secretID != "" {
		client, err := newSecretsClient(ctx, os.Getenv("AWS_SECRETS_MANAGER_REGION"))
		if err != nil {
			logger.WarnContext(ctx, "skipping AWS Secrets Manager", slog.Any("error", err))
		} else {
			applied, err := LoadSecrets(ctx, client, secretID, os.LookupEnv, os.Setenv)
			if err != nil {
				logger.WarnContext(ctx, "skipping AWS Secrets Manager", slog.Any("error", err))
			} else {
				logger.InfoContext(ctx, "loaded env from AWS Secrets Manager",
					slog.String("secret_id", secretID),
					slog.Int("applied", applied),
				)
			}
		}
	}

	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = defaultEnvPath
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.DebugContext(ctx, "env file not loaded", slog.String("path", envFile))
	}
}

func newSecretsClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// LoadSecrets reads a JSON object secret and sets each key as an environment
// variable unless it is already set. Returns the number of applied keys.
func LoadSecrets(
	ctx context.Context,
	client SecretsClient,
	secretID string,
	lookup func(string) (string, bool),
	setenv func(string, string) error,
) (int, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return 0, fmt.Errorf("fetching secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case out.SecretString != nil:
		payload = *out.SecretString
	case len(out.SecretBinary) > 0:
		payload = string(out.SecretBinary)
	default:
		return 0, errors.New("secret has no payload")
	}

	var kv map[string]any
	if err := json.Unmarshal([]byte(payload), &kv); err != nil {
		return 0, fmt.Errorf("parsing secret %s as JSON: %w", secretID, err)
	}

	applied := 0
	for key, val := range kv {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if existing, ok := lookup(key); ok && existing != "" {
			continue
		}
		if err := setenv(key, fmt.Sprint(val)); err != nil {
			return applied, fmt.Errorf("setting env %s from secret: %w", key, err)
		}
		applied++
	}

	return applied, nil
}
