package common

import (
	"context"
	"fmt"
	"os"

	apperrors "sirius/pkg/errors"
	"sirius/pkg/keyvault"
)

// Environment is the deployment stage read from ENVIRONMENT
type Environment string

const (
	Production   Environment = "Production"
	Test         Environment = "Test"
	Development  Environment = "Development"
	CICDPipeline Environment = "CI/CD Pipeline"
)

const environmentKey = "ENVIRONMENT"

// GetEnvironmentalVariable returns the value of key or an ApplicationError when it is unset
func GetEnvironmentalVariable(key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", apperrors.NewApplicationError(fmt.Sprintf("Environment variable with the key is not available: %s", key))
	}
	return value, nil
}

// GetEnvironmentalSecret resolves key through the default Azure Key Vault
func GetEnvironmentalSecret(ctx context.Context, key string) (string, error) {
	vault, err := keyvault.Default()
	if err != nil {
		return "", err
	}
	return vault.Get(ctx, key)
}

// GetEnvironment defaults to Development when ENVIRONMENT is unset
func GetEnvironment() (Environment, error) {
	value, ok := os.LookupEnv(environmentKey)
	if !ok || value == "" {
		return Development, nil
	}

	switch env := Environment(value); env {
	case Production, Test, Development, CICDPipeline:
		return env, nil
	default:
		return "", apperrors.NewApplicationError(fmt.Sprintf("Invalid environment variable setup: %s", value))
	}
}

func isEnvironment(want Environment) bool {
	env, err := GetEnvironment()
	return err == nil && env == want
}

func IsProductionEnvironment() bool {
	return isEnvironment(Production)
}

func IsTestEnvironment() bool {
	return isEnvironment(Test)
}

// IsDevelopmentEnvironment is also true inside the CI/CD pipeline
func IsDevelopmentEnvironment() bool {
	return isEnvironment(Development) || IsCICDPipelineEnvironment()
}

func IsCICDPipelineEnvironment() bool {
	return isEnvironment(CICDPipeline)
}

// GetApplicationName returns APPLICATION_NAME
func GetApplicationName() (string, error) {
	return GetEnvironmentalVariable("APPLICATION_NAME")
}

// OnlyInDev runs fn in the development environment and refuses everywhere else
func OnlyInDev(fn func() error) error {
	if !IsDevelopmentEnvironment() {
		return apperrors.NewOperationNotSupported("dev-only operation", "Operation is only permitted in the dev environment")
	}
	return fn()
}
