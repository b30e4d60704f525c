// Package config resolves runtime settings from the environment, backed by an
// optional flattened YAML phase file. Environment variables always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level    string
	Format   string
	FilePath string
}

// CLIConfig carries everything the trading CLI needs. Program ids live here
// and are passed explicitly into derivation and instruction building.
type CLIConfig struct {
	RPCURL                 string
	WSURL                  string
	Commitment             rpc.CommitmentType
	KeypairPath            string
	AuctionHouseProgramID  solana.PublicKey
	TokenMetadataProgramID solana.PublicKey
	TxTimeout              time.Duration
	ResubmitInterval       time.Duration
	StatusPollInterval     time.Duration
	SkipPreflight          bool
	ReceiptsDSN            string
	Log                    LogConfig
}

var (
	defaultAuctionHouseProgramID  = solana.MustPublicKeyFromBase58("Er4qqGJpN9CkQWeUp1P87aWYzkCqd4NbbKi8vtoNfPUJ")
	defaultTokenMetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

func LoadCLIConfig() (CLIConfig, error) {
	if err := ensurePhaseConfigLoaded(); err != nil {
		return CLIConfig{}, err
	}

	keypairPath, err := expandHomePath(envOrDefault("AUCTION_KEYPAIR_PATH", envOrDefault("SOLANA_KEYPAIR_PATH", "~/.config/solana/id.json")))
	if err != nil {
		return CLIConfig{}, fmt.Errorf("expand keypair path: %w", err)
	}

	commitment, err := envCommitment("SOLANA_COMMITMENT", rpc.CommitmentConfirmed)
	if err != nil {
		return CLIConfig{}, err
	}
	txTimeout, err := envDuration("AUCTION_TX_TIMEOUT", 60*time.Second)
	if err != nil {
		return CLIConfig{}, err
	}
	resubmitInterval, err := envDuration("AUCTION_RESUBMIT_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return CLIConfig{}, err
	}
	statusPollInterval, err := envDuration("AUCTION_STATUS_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return CLIConfig{}, err
	}
	skipPreflight, err := envBool("AUCTION_SKIP_PREFLIGHT", true)
	if err != nil {
		return CLIConfig{}, err
	}
	programID, err := envPubkey("AUCTION_HOUSE_PROGRAM_ID", defaultAuctionHouseProgramID)
	if err != nil {
		return CLIConfig{}, err
	}
	metadataProgramID, err := envPubkey("TOKEN_METADATA_PROGRAM_ID", defaultTokenMetadataProgramID)
	if err != nil {
		return CLIConfig{}, err
	}

	return CLIConfig{
		RPCURL:                 envOrDefault("SOLANA_RPC_URL", "http://127.0.0.1:8899"),
		WSURL:                  envOrDefault("SOLANA_WS_URL", ""),
		Commitment:             commitment,
		KeypairPath:            keypairPath,
		AuctionHouseProgramID:  programID,
		TokenMetadataProgramID: metadataProgramID,
		TxTimeout:              txTimeout,
		ResubmitInterval:       resubmitInterval,
		StatusPollInterval:     statusPollInterval,
		SkipPreflight:          skipPreflight,
		ReceiptsDSN:            envOrDefault("AUCTION_RECEIPTS_DSN", ""),
		Log:                    buildLogConfig("AUCTION"),
	}, nil
}

// ConfigSource reports which phase file, if any, backed the loaded values.
type ConfigSource struct {
	Phase  string
	Path   string
	Loaded bool
}

func CurrentConfigSource() (ConfigSource, error) {
	if err := ensurePhaseConfigLoaded(); err != nil {
		return ConfigSource{}, err
	}
	return ConfigSource{
		Phase:  phaseConfigPhase,
		Path:   phaseConfigPath,
		Loaded: phaseConfigLoaded,
	}, nil
}

func buildLogConfig(prefix string) LogConfig {
	return LogConfig{
		Level:    envOrDefault(prefix+"_LOG_LEVEL", envOrDefault("LOG_LEVEL", "info")),
		Format:   envOrDefault(prefix+"_LOG_FORMAT", envOrDefault("LOG_FORMAT", "text")),
		FilePath: envOrDefault(prefix+"_LOG_FILE", envOrDefault("LOG_FILE", "")),
	}
}

func envPubkey(key string, fallback solana.PublicKey) (solana.PublicKey, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return pk, nil
}

func envCommitment(key string, fallback rpc.CommitmentType) (rpc.CommitmentType, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	switch strings.ToLower(raw) {
	case string(rpc.CommitmentProcessed):
		return rpc.CommitmentProcessed, nil
	case string(rpc.CommitmentConfirmed):
		return rpc.CommitmentConfirmed, nil
	case string(rpc.CommitmentFinalized):
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("invalid %s: %q (expected processed|confirmed|finalized)", key, raw)
	}
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(valueForKey(key)); value != "" {
		return value
	}
	return fallback
}

func expandHomePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return homeDir, nil
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

var (
	phaseConfigOnce   sync.Once
	phaseConfigErr    error
	phaseConfigValues map[string]string
	phaseConfigLoaded bool
	phaseConfigPath   string
	phaseConfigPhase  string
)

func ensurePhaseConfigLoaded() error {
	phaseConfigOnce.Do(func() {
		phaseConfigValues = make(map[string]string)

		phase := strings.TrimSpace(os.Getenv("CONFIG_PHASE"))
		if phase == "" {
			phase = "local"
		}
		phaseConfigPhase = phase

		configPath := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
		explicitPath := configPath != ""
		if configPath == "" {
			configPath = filepath.Join("config", "config-"+phase+".yaml")
		}

		body, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !explicitPath {
				return
			}
			phaseConfigErr = fmt.Errorf("read config file %q: %w", configPath, err)
			return
		}

		raw := make(map[string]any)
		if err := yaml.Unmarshal(body, &raw); err != nil {
			phaseConfigErr = fmt.Errorf("parse config file %q: %w", configPath, err)
			return
		}

		for key, value := range raw {
			if err := flattenValue(normalizeKeySegment(key), value, phaseConfigValues); err != nil {
				phaseConfigErr = fmt.Errorf("flatten config file %q: %w", configPath, err)
				return
			}
		}
		phaseConfigLoaded = true
		if absPath, err := filepath.Abs(configPath); err == nil {
			phaseConfigPath = absPath
		} else {
			phaseConfigPath = configPath
		}
	})
	return phaseConfigErr
}

// flattenValue turns nested YAML into env-style keys: {solana: {rpc_url: x}}
// becomes SOLANA_RPC_URL=x.
func flattenValue(prefix string, value any, out map[string]string) error {
	if prefix == "" {
		return nil
	}
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			if err := flattenValue(prefix+"_"+normalizeKeySegment(key), child, out); err != nil {
				return err
			}
		}
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			switch item.(type) {
			case map[string]any, []any:
				return fmt.Errorf("unsupported nested list under %q", prefix)
			}
			parts = append(parts, strings.TrimSpace(fmt.Sprint(item)))
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
	default:
		out[prefix] = fmt.Sprint(typed)
	}
	return nil
}

func normalizeKeySegment(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func valueForKey(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if err := ensurePhaseConfigLoaded(); err != nil {
		return ""
	}
	return strings.TrimSpace(phaseConfigValues[key])
}
