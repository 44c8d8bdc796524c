package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/paystream-hq/paystreamer/pkg/logger"
)

// Config holds the configuration for the payment intent service
type Config struct {
	Port              string
	MetricsPort       string
	Network           string
	RPCURL            string
	RegistryAddress   string
	PrivateKey        string
	FacilitatorURL    string
	ExecutorInterval  time.Duration
	SchedulerInterval time.Duration
	WorkerCount       int
	CallTimeout       time.Duration
	RecurringGrace    time.Duration
	CircuitBreaker    CircuitBreakerConfig
	LoggerConfig      LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	port, err := GetEnvPort()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	network, err := GetEnvNetwork()
	if err != nil {
		return nil, err
	}

	executorInterval, err := GetEnvExecutorInterval()
	if err != nil {
		return nil, err
	}

	schedulerInterval, err := GetEnvSchedulerInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	callTimeout, err := GetEnvCallTimeout()
	if err != nil {
		return nil, err
	}

	recurringGrace, err := GetEnvRecurringGrace()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	facilitatorURL, err := GetEnvFacilitatorURL()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	registryAddress, err := GetEnvRegistryAddress()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:              port,
		MetricsPort:       metricsPort,
		Network:           network,
		RPCURL:            rpcURL,
		RegistryAddress:   registryAddress,
		PrivateKey:        os.Getenv("PRIVATE_KEY"),
		FacilitatorURL:    facilitatorURL,
		ExecutorInterval:  executorInterval,
		SchedulerInterval: schedulerInterval,
		WorkerCount:       workerCount,
		CallTimeout:       callTimeout,
		RecurringGrace:    recurringGrace,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	if cfg.RegistryAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS environment variable is required")
	}
	return nil
}
