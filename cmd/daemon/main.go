// Command swapd runs the Bitcoin/Monero atomic swap daemon: the
// Monero-holding maker side of the protocol (protocol/alice), listening
// for incoming swaps over libp2p and backing them with a real Electrum
// server and monero-wallet-rpc instance.
package main

import (
	"context"
	"fmt"
	stdnet "net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dendisuhubdy/xmr-btc-swap/btc"
	"github.com/dendisuhubdy/xmr-btc-swap/btc/electrum"
	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
	"github.com/dendisuhubdy/xmr-btc-swap/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/net"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/backend"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/swap"
	"github.com/dendisuhubdy/xmr-btc-swap/rpc"
)

const (
	flagConfig         = "config"
	flagDataDir        = "data-dir"
	flagEnv            = "env"
	flagDev            = "dev"
	flagOfferXMRAmount = "offer-xmr-amount"
	flagOfferBTCAmount = "offer-btc-amount"
	flagExchangeRate   = "exchange-rate"
	flagCancelTimelock = "cancel-timelock"
	flagPunishTimelock = "punish-timelock"
	flagRPCPort        = "rpc-port"
)

func main() {
	app := &cli.App{
		Name:  "swapd",
		Usage: "Automated BTC/XMR atomic swap daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagConfig,
				Usage: "path to the daemon's TOML config file",
				Value: defaultConfigPath(),
			},
			&cli.StringFlag{
				Name:  flagDataDir,
				Usage: "directory for the swap database (overrides config)",
			},
			&cli.StringFlag{
				Name:  flagEnv,
				Usage: "runtime environment: dev, test, or mainnet",
				Value: "dev",
			},
			&cli.BoolFlag{
				Name:  flagDev,
				Usage: "shorthand for --env=dev",
			},
			&cli.Float64Flag{
				Name:  flagOfferXMRAmount,
				Usage: "amount of XMR offered per swap",
				Value: 1.0,
			},
			&cli.Float64Flag{
				Name:  flagOfferBTCAmount,
				Usage: "amount of BTC requested per swap",
				Value: 0.05,
			},
			&cli.Float64Flag{
				Name:  flagExchangeRate,
				Usage: "BTC-per-XMR exchange rate",
				Value: 0.05,
			},
			&cli.Uint64Flag{
				Name:  flagCancelTimelock,
				Usage: "TxCancel CheckSequenceVerify timelock, in blocks",
				Value: 20,
			},
			&cli.Uint64Flag{
				Name:  flagPunishTimelock,
				Usage: "TxPunish CheckSequenceVerify timelock, in blocks",
				Value: 20,
			},
			&cli.UintFlag{
				Name:  flagRPCPort,
				Usage: "local port to serve swap status websocket subscriptions on",
				Value: 5000,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "swapd-config.toml"
	}
	return filepath.Join(dir, ".swapd", "config.toml")
}

func run(c *cli.Context) error {
	env, err := parseEnvironment(c)
	if err != nil {
		return err
	}

	dataDir := c.String(flagDataDir)
	if dataDir == "" {
		dataDir = filepath.Join(filepath.Dir(c.String(flagConfig)), "data")
	}

	cfg, err := loadConfig(c.String(flagConfig), dataDir)
	if err != nil {
		return err
	}
	if c.String(flagDataDir) != "" {
		cfg.DataDir = c.String(flagDataDir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &daemon{ctx: ctx, cancel: cancel}

	netParams := btc.NetParamsForEnvironment(env)

	electrumAddr, useTLS, err := parseElectrumURL(cfg.Bitcoin.ElectrumRPCURL)
	if err != nil {
		return fmt.Errorf("invalid electrum_rpc_url: %w", err)
	}

	electrumClient, err := electrum.Dial(electrumAddr, useTLS)
	if err != nil {
		return fmt.Errorf("failed to dial electrum server: %w", err)
	}

	ks, err := newKeystore(netParams)
	if err != nil {
		return err
	}

	btcWallet := btc.NewElectrumWallet(electrumClient, env, nil, ks.address)

	xmrClient := monero.NewClient(cfg.Monero.WalletRPCURL)
	if err := openOrCreateMoneroWallet(xmrClient, cfg.Monero); err != nil {
		return err
	}

	db, err := swap.NewDatabase(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open swap database: %w", err)
	}
	d.db = db

	mgr, err := swap.NewManager(db)
	if err != nil {
		return fmt.Errorf("failed to construct swap manager: %w", err)
	}

	host, err := net.NewHost(&net.Config{
		Ctx:      ctx,
		Env:      env,
		DataDir:  cfg.DataDir,
		Port:     cfg.Network.Port,
		KeyFile:  filepath.Join(cfg.DataDir, "node.key"),
		ListenIP: cfg.Network.ListenIP,
	})
	if err != nil {
		return fmt.Errorf("failed to start network host: %w", err)
	}
	d.host = host

	b, err := backend.NewBackend(&backend.Config{
		Ctx:                ctx,
		Env:                env,
		BTCWallet:          btcWallet,
		XMRClient:          xmrClient,
		Host:               host,
		SwapManager:        mgr,
		LockConfirmTimeout: cfg.Bitcoin.LockConfirmedTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to construct backend: %w", err)
	}

	offer := types.NewOffer(
		common.MoneroToPiconero(c.Float64(flagOfferXMRAmount)),
		common.BTCToSatoshi(c.Float64(flagOfferBTCAmount)),
		common.ExchangeRate(c.Float64(flagExchangeRate)),
		c.Uint64(flagCancelTimelock),
		c.Uint64(flagPunishTimelock),
	)

	handler := newSwapHandler(b, offer)
	host.SetHandler(handler)

	rpcServer := rpc.NewServer(ctx, mgr, handler)
	rpcAddr := fmt.Sprintf("127.0.0.1:%d", c.Uint(flagRPCPort))
	rpcHTTP := &http.Server{Addr: rpcAddr, Handler: rpcServer}
	go func() {
		if err := rpcHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("status rpc server exited: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = rpcHTTP.Close()
	}()

	log.Infof("swapd listening, offering %.4f XMR for %s BTC", offer.XMRAmount.AsMonero(), offer.BTCAmount)
	log.Infof("swap status websocket available at ws://%s", rpcAddr)
	for _, addr := range host.Addrs() {
		log.Infof("  %s", addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("received shutdown signal")
		cancel()
	}()

	d.wait()
	return nil
}

func parseEnvironment(c *cli.Context) (common.Environment, error) {
	if c.Bool(flagDev) {
		return common.Development, nil
	}

	switch c.String(flagEnv) {
	case "dev", "":
		return common.Development, nil
	case "test":
		return common.Test, nil
	case "mainnet":
		return common.Mainnet, nil
	default:
		return 0, fmt.Errorf("invalid %s value %q", flagEnv, c.String(flagEnv))
	}
}

// parseElectrumURL splits an "ssl://host:port" or "tcp://host:port" style
// URL (matching original_source/swap/src/asb/config.rs's electrum_rpc_url
// shape) into the host:port address and TLS flag electrum.Dial expects.
func parseElectrumURL(raw string) (addr string, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}

	switch u.Scheme {
	case "ssl", "tls":
		useTLS = true
	case "tcp", "":
		useTLS = false
	default:
		return "", false, fmt.Errorf("unsupported electrum scheme %q", u.Scheme)
	}

	host := u.Host
	if host == "" {
		host = u.Opaque
	}
	if host == "" {
		return "", false, fmt.Errorf("electrum url %q has no host:port", raw)
	}

	if _, _, err := stdnet.SplitHostPort(host); err != nil {
		return "", false, fmt.Errorf("electrum url %q must include a port: %w", raw, err)
	}

	return host, useTLS, nil
}

func openOrCreateMoneroWallet(xmrClient monero.Client, cfg MoneroConfig) error {
	if err := xmrClient.OpenWallet(cfg.WalletName, cfg.WalletPassword); err != nil {
		if err := xmrClient.CreateWallet(cfg.WalletName, cfg.WalletPassword); err != nil {
			return fmt.Errorf("failed to create monero wallet %s: %w", cfg.WalletName, err)
		}
	}
	return nil
}
