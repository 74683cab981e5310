package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Default config values, grounded on original_source/swap/src/asb/config.rs's
// DEFAULT_LISTEN_ADDRESS/DEFAULT_ELECTRUM_RPC_URL/
// DEFAULT_MONERO_WALLET_RPC_TESTNET_URL/DEFAULT_WALLET_NAME constants,
// renamed from "asb" to this module's own naming.
const (
	defaultListenIP         = "0.0.0.0"
	defaultListenPort       = 9939
	defaultElectrumRPCURL   = "ssl://electrum.blockstream.info:60002"
	defaultMoneroWalletRPC  = "http://127.0.0.1:38083/json_rpc"
	defaultMoneroWalletName = "swapd-wallet"
)

// Config is swapd's on-disk TOML configuration, shaped after
// original_source/swap/src/asb/config.rs's Config/Data/Network/Bitcoin/Monero
// struct split.
type Config struct {
	DataDir string        `toml:"data_dir"`
	Network NetworkConfig `toml:"network"`
	Bitcoin BitcoinConfig `toml:"bitcoin"`
	Monero  MoneroConfig  `toml:"monero"`
}

// NetworkConfig configures the libp2p listener.
type NetworkConfig struct {
	ListenIP string `toml:"listen_ip"`
	Port     uint16 `toml:"port"`
}

// BitcoinConfig configures the Electrum server this daemon queries and the
// execution parameters that govern how long Alice waits for Bob's TxLock.
type BitcoinConfig struct {
	ElectrumRPCURL string `toml:"electrum_rpc_url"`
	UseTLS         bool   `toml:"use_tls"`

	// FinalityConfirmations is how many confirmations a swap's Bitcoin
	// transactions must reach before being treated as settled.
	FinalityConfirmations uint64 `toml:"finality_confirmations"`
	// LockConfirmedTimeout bounds Alice's wait for Bob's TxLock to reach
	// its first confirmation before she safely aborts.
	LockConfirmedTimeout time.Duration `toml:"lock_confirmed_timeout"`
}

// MoneroConfig configures the monero-wallet-rpc instance this daemon
// drives.
type MoneroConfig struct {
	WalletRPCURL   string `toml:"wallet_rpc_url"`
	WalletName     string `toml:"wallet_name"`
	WalletPassword string `toml:"wallet_password"`

	// FinalityConfirmations is how many confirmations a swap's Monero
	// transfer must reach before being treated as settled.
	FinalityConfirmations uint64 `toml:"finality_confirmations"`
}

const (
	defaultBitcoinFinalityConfirmations = 1
	defaultLockConfirmedTimeout         = time.Hour
	defaultMoneroFinalityConfirmations  = 10
)

func defaultConfig(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		Network: NetworkConfig{
			ListenIP: defaultListenIP,
			Port:     defaultListenPort,
		},
		Bitcoin: BitcoinConfig{
			ElectrumRPCURL:        defaultElectrumRPCURL,
			UseTLS:                true,
			FinalityConfirmations: defaultBitcoinFinalityConfirmations,
			LockConfirmedTimeout:  defaultLockConfirmedTimeout,
		},
		Monero: MoneroConfig{
			WalletRPCURL:          defaultMoneroWalletRPC,
			WalletName:            defaultMoneroWalletName,
			FinalityConfirmations: defaultMoneroFinalityConfirmations,
		},
	}
}

// loadConfig reads path as TOML, writing out a freshly defaulted config
// file at path first if none exists yet.
func loadConfig(path, dataDir string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig(dataDir)
		if err := writeConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	return &cfg, nil
}

func writeConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
