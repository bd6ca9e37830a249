package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/halcyontrade/swap-engine/internal/adapters/persistence"
	"github.com/halcyontrade/swap-engine/internal/chain"
	swapcommon "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/config"
	"github.com/halcyontrade/swap-engine/internal/domain"
	enginehttp "github.com/halcyontrade/swap-engine/internal/http"
	"github.com/halcyontrade/swap-engine/internal/http/httputil"
	"github.com/halcyontrade/swap-engine/internal/services/aggregator"
	"github.com/halcyontrade/swap-engine/internal/services/compiler"
	"github.com/halcyontrade/swap-engine/internal/services/router"
	"github.com/halcyontrade/swap-engine/internal/services/sources"
	"github.com/halcyontrade/swap-engine/internal/services/submitter"
)

const gasPricePollInterval = 15 * time.Second

// mainnetTokens is the startup token catalog. Quotes for unknown tokens
// still work; they just resolve with 18 decimals and no symbol.
func mainnetTokens() []domain.Token {
	return []domain.Token{
		{Address: common.Address{}, Symbol: "ETH", Decimals: 18},
		{Address: swapcommon.WrappedNative, Symbol: "WETH", Decimals: 18},
		{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6},
		{Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Symbol: "USDT", Decimals: 6},
		{Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Symbol: "DAI", Decimals: 18},
		{Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Symbol: "WBTC", Decimals: 8},
	}
}

// intermediates are the pivot tokens multi-hop paths may route through.
func intermediates(registry domain.TokenRegistry) []domain.Token {
	pivots := []common.Address{
		swapcommon.WrappedNative,
		common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
		common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
	}
	out := make([]domain.Token, 0, len(pivots))
	for _, addr := range pivots {
		out = append(out, registry.Lookup(addr))
	}
	return out
}

func allowedProtocols(tags []string) []domain.Protocol {
	out := make([]domain.Protocol, 0, len(tags))
	for _, tag := range tags {
		out = append(out, domain.Protocol(tag))
	}
	return out
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	swapcommon.SetupLogger(cfg.General.LogLevel, cfg.General.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := chain.NewProvider(ctx, cfg.RPC.Endpoints)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect RPC provider")
		os.Exit(1)
	}
	defer provider.Close()

	gas := chain.NewGasState()
	go gas.WatchGasPrice(ctx, provider, gasPricePollInterval)

	store, err := persistence.NewStorage(cfg.Trading.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open trade history store")
		os.Exit(1)
	}
	defer store.Close()

	registry := make(domain.TokenRegistry)
	for _, t := range mainnetTokens() {
		registry[t.Address] = t
	}
	pivots := intermediates(registry)

	concentrated := sources.NewConcentratedSource(
		cfg.Sources.ConcentratedSubgraphURL, pivots, cfg.Sources.LiquidityFloorUSD, registry)
	weighted, err := sources.NewWeightedSource(
		cfg.Sources.WeightedSubgraphURL, provider, swapcommon.WeightedVault,
		cfg.Sources.LiquidityFloorUSD, registry)
	if err != nil {
		log.Error().Err(err).Msg("failed to build weighted pool source")
		os.Exit(1)
	}
	odos := sources.NewOdosSource(cfg.Sources.OdosBaseURL)
	oneinch := sources.NewOneInchSource(cfg.Sources.OneInchBaseURL, cfg.Sources.OneInchAPIKey)

	rtr := router.NewRouter(cfg.Sources.MaxHops, cfg.Sources.LiquidityFloorUSD)
	routerSource := aggregator.NewRouterSource([]sources.Source{concentrated, weighted}, rtr)

	agg := aggregator.New(
		[]sources.Source{routerSource, odos, oneinch},
		allowedProtocols(cfg.Sources.AllowedProtocols),
		gas,
	)
	comp := compiler.New(cfg.Trading.ConcentratedEncoder, cfg.Trading.WeightedEncoder)

	quoteHandler := enginehttp.NewQuoteHandler(agg, registry, uint16(cfg.Trading.DefaultSlippageBps))
	handlers := []httputil.IHttpHandler{
		quoteHandler,
		enginehttp.NewTradesHandler(store),
		enginehttp.NewPricesHandler(gas),
	}

	if cfg.Trading.SignerPrivateKey != "" {
		chainID, err := provider.ChainID(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to read chain id")
			os.Exit(1)
		}
		signer, err := chain.NewKeySigner(cfg.Trading.SignerPrivateKey, chainID)
		if err != nil {
			log.Error().Err(err).Msg("invalid signer key")
			os.Exit(1)
		}
		nonces := submitter.NewNonceManager(provider)
		defer nonces.Close()

		sub := submitter.New(provider, signer, nonces, gas, store, cfg.Trading.BundlerAddress)
		handlers = append(handlers, enginehttp.NewSwapHandler(
			quoteHandler, comp, sub, uint64(cfg.Trading.GasLimit)))
		log.Info().Str("account", signer.Address().Hex()).Msg("trade execution enabled")
	} else {
		log.Warn().Msg("SIGNER_PRIVATE_KEY not set, running quote-only")
	}

	httpSvc := enginehttp.NewHTTPService(&cfg.General, handlers...)
	go func() {
		if err := httpSvc.Start(); err != nil {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if err := httpSvc.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("shutdown complete")
}
