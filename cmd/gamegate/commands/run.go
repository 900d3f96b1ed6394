package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/layer-3/gamegate/adapters/events"
	"github.com/layer-3/gamegate/adapters/ledger"
	"github.com/layer-3/gamegate/adapters/tokenizer"
	"github.com/layer-3/gamegate/config"
	"github.com/layer-3/gamegate/service"
	"github.com/layer-3/gamegate/transport/tcp"
	ophttp "github.com/layer-3/gamegate/transport/http"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// NewRunCmd returns the command that starts the game server
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the game server",
		RunE:  runServer,
	}
	AddRunFlags(cmd)
	return cmd
}

// AddRunFlags adds flags to the run command
func AddRunFlags(cmd *cobra.Command) {
	def := config.NewDefaultConfig()

	cmd.Flags().String("datadir", def.DataDir, "Directory holding gamegate.{toml,yaml,json}")
	cmd.Flags().StringP("listen", "l", def.Listen, "Listen IP:Port for players")
	cmd.Flags().IntP("difficulty", "d", def.Difficulty, "Proof of work difficulty in leading zero bits")
	cmd.Flags().DurationP("timeout", "t", def.Timeout, "Idle timeout per connection")
	cmd.Flags().String("gas-price", def.GasPrice, "Default gas price in wei")

	// Ledger
	cmd.Flags().String("rpc-url", def.RPCURL, "JSON-RPC endpoint of the ledger")
	cmd.Flags().String("solc", def.Solc, "Path of the solc binary")
	cmd.Flags().String("network", def.Network, "Network name shown in the menu")

	// Game
	cmd.Flags().String("source-file", def.SourceFile, "Contract source file")
	cmd.Flags().String("contract-name", def.ContractName, "Contract to deploy")
	cmd.Flags().String("placeholder", def.Placeholder, "Token randomised in every deployed copy")
	cmd.Flags().String("flag-file", def.FlagFile, "File holding the flag")
	cmd.Flags().String("banner-file", def.BannerFile, "File holding the banner")
	cmd.Flags().String("variant", def.Variant, "Menu variant: basic or extended")
	cmd.Flags().String("solve.kind", def.Solve.Kind, "Solved-state check: variable or event")
	cmd.Flags().String("solve.name", def.Solve.Name, "Getter or event name of the solved-state check")

	// Secrets
	cmd.Flags().String("aes-key", "", "Hex AES key for tokens, random when empty")
	cmd.Flags().String("hmac-key", "", "Hex HMAC key for tokens, random when empty")

	// Logging
	cmd.Flags().String("log.level", def.Log.Level, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log.format", def.Log.Format, "text or json")

	// Events
	cmd.Flags().String("events.redis-url", "", "Redis URL for audit events; when empty events are only logged")
	cmd.Flags().String("events.topic", def.Events.Topic, "Audit event topic")

	// Ops
	cmd.Flags().String("ops.listen", "", "Listen IP:Port for the operator API, disabled when empty")
	cmd.Flags().String("ops.secret", "", "Secret signing operator tokens")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"listen":     cfg.Listen,
		"difficulty": cfg.Difficulty,
		"timeout":    cfg.Timeout,
		"rpc_url":    cfg.RPCURL,
		"variant":    cfg.Variant,
		"solve_kind": cfg.Solve.Kind,
		"ops_listen": cfg.Ops.Listen,
	}).Debug("RUN")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameCfg, err := cfg.GameConfig()
	if err != nil {
		return err
	}

	encKey, macKey, err := cfg.Secrets()
	if err != nil {
		return err
	}
	tok, err := tokenizer.NewCBCTokenizer(encKey, macKey)
	if err != nil {
		return err
	}

	led, err := ledger.Dial(ctx, cfg.RPCURL, logger.WithField("component", "ledger"))
	if err != nil {
		return err
	}

	publisher, closePublisher, err := events.NewBackend(ctx, cfg.Events.RedisURL, cfg.Events.Topic, logger.WithField("component", "events"))
	if err != nil {
		return err
	}
	defer closePublisher()

	stats := &service.Stats{}
	game, err := service.NewGameService(
		ctx,
		gameCfg,
		tok,
		led,
		ledger.NewSolcCompiler(cfg.Solc),
		events.NewWatermillPublisher(publisher, cfg.Events.Topic),
		stats,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize game: %w", err)
	}

	if cfg.Ops.Listen != "" {
		opsServer := &http.Server{
			Addr:    cfg.Ops.Listen,
			Handler: ophttp.SetupRouter(stats, []byte(cfg.Ops.Secret)),
		}
		go func() {
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Ops server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			opsServer.Shutdown(shutdownCtx)
		}()
	}

	server := tcp.NewServer(
		service.NewAdmissionGate(cfg.Difficulty),
		game,
		cfg.Timeout,
		logger.WithField("component", "tcp"),
	)
	return server.ListenAndServe(ctx, cfg.Listen)
}
