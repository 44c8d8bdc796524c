package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/paystream-hq/paystreamer/pkg/logger"
)

const (
	cronosTestnet = "cronos-testnet"
	cronosMainnet = "cronos-mainnet"

	// DefaultNetwork is the default network the registry contract lives on
	DefaultNetwork = cronosTestnet

	// DefaultPort defines the default port for the HTTP API
	DefaultPort = "8787"

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultExecutorInterval defines the default executor tick interval in seconds
	DefaultExecutorInterval = 30

	// DefaultSchedulerInterval defines the default recurring scheduler tick interval in seconds
	DefaultSchedulerInterval = 60

	// DefaultWorkerCount defines the default number of concurrent settlement attempts per tick
	DefaultWorkerCount = 5

	// DefaultCallTimeout defines the default deadline applied to a single collaborator call
	DefaultCallTimeout = 30

	// DefaultRecurringGraceHours defines the deadline window given to a spawned recurring intent
	DefaultRecurringGraceHours = 48

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in seconds
	DefaultCircuitBreakerWindow = 60

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in seconds
	DefaultCircuitBreakerReset = 120

	// DefaultRPCURL defines the default RPC endpoint for the registry chain
	DefaultRPCURL = "https://evm-t3.cronos.org"

	// DefaultFacilitatorURL defines the default payment facilitator endpoint
	DefaultFacilitatorURL = "https://facilitator.x402.org"
)

// GetEnvPort returns the HTTP API port from environment variables
func GetEnvPort() (string, error) {
	port := os.Getenv("PORT")
	if port == "" {
		return DefaultPort, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid PORT value: %s, must be a valid integer", port)
	}
	return port, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvNetwork returns the configured network from environment variables
func GetEnvNetwork() (string, error) {
	network := os.Getenv("NETWORK")
	if network == "" {
		network = DefaultNetwork
	}

	if network != cronosTestnet && network != cronosMainnet {
		return "", fmt.Errorf("invalid NETWORK value: %s, must be '%s' or '%s'", network, cronosTestnet, cronosMainnet)
	}

	return network, nil
}

// GetEnvExecutorInterval returns the executor tick interval from environment variables
func GetEnvExecutorInterval() (time.Duration, error) {
	return getEnvSeconds("EXECUTOR_INTERVAL", DefaultExecutorInterval)
}

// GetEnvSchedulerInterval returns the recurring scheduler tick interval from environment variables
func GetEnvSchedulerInterval() (time.Duration, error) {
	return getEnvSeconds("SCHEDULER_INTERVAL", DefaultSchedulerInterval)
}

// GetEnvCallTimeout returns the per-call collaborator deadline from environment variables
func GetEnvCallTimeout() (time.Duration, error) {
	return getEnvSeconds("CALL_TIMEOUT", DefaultCallTimeout)
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	workerCount := os.Getenv("WORKER_COUNT")
	if workerCount == "" {
		return DefaultWorkerCount, nil
	}

	count, err := strconv.Atoi(workerCount)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", workerCount)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvRecurringGrace returns the deadline window for recurring intents from environment variables
func GetEnvRecurringGrace() (time.Duration, error) {
	grace := os.Getenv("RECURRING_GRACE")
	if grace == "" {
		return DefaultRecurringGraceHours * time.Hour, nil
	}

	parsed, err := time.ParseDuration(grace)
	if err != nil {
		return 0, fmt.Errorf("invalid RECURRING_GRACE value: %s, must be a valid duration string", grace)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("RECURRING_GRACE must be greater than 0")
	}
	return parsed, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvRPCURL returns the registry chain RPC endpoint from environment variables
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return DefaultRPCURL, nil
	}

	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvRegistryAddress returns the intent registry contract address from environment variables
func GetEnvRegistryAddress() (string, error) {
	registryAddress := os.Getenv("CONTRACT_ADDRESS")
	if registryAddress == "" {
		return "", nil
	}

	if !common.IsHexAddress(registryAddress) {
		return "", fmt.Errorf("invalid CONTRACT_ADDRESS value: %s, must be a valid address", registryAddress)
	}
	return registryAddress, nil
}

// GetEnvFacilitatorURL returns the payment facilitator endpoint from environment variables
func GetEnvFacilitatorURL() (string, error) {
	facilitatorURL := os.Getenv("FACILITATOR_URL")
	if facilitatorURL == "" {
		return DefaultFacilitatorURL, nil
	}

	if _, err := url.ParseRequestURI(facilitatorURL); err != nil {
		return "", fmt.Errorf("invalid FACILITATOR_URL value: %s, must be a valid URL", facilitatorURL)
	}
	return facilitatorURL, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of 'debug', 'info', 'notice', 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

// getEnvSeconds reads an integer number of seconds with a default
func getEnvSeconds(key string, defaultSeconds int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultSeconds) * time.Second, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", key, raw)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return time.Duration(seconds) * time.Second, nil
}
