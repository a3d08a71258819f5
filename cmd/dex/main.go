package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"dex/internal/common"
	"dex/internal/config"
	"dex/internal/console"
	"dex/internal/engine"
	"dex/internal/ledger"
	"dex/internal/registry"
	"dex/internal/report"
	"dex/internal/token"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file with DEX_* settings")
	script := flag.String("script", "", "Command file to run instead of reading stdin")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load configuration")
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Every asset lives on its own in-memory token ledger.
	reg := registry.New(registry.WithQuote(cfg.Exchange.QuoteAsset))
	eng := engine.New(reg, ledger.New())
	tokens := make(map[common.Symbol]*token.Token, len(cfg.Exchange.Assets))
	for _, symbol := range cfg.Exchange.Assets {
		tok := token.New(symbol)
		if err := eng.AddAsset(symbol, tok); err != nil {
			log.Fatal().Err(err).Str("symbol", string(symbol)).Msg("unable to add asset")
		}
		tokens[symbol] = tok
	}

	sinks := []report.Sink{report.LogSink()}
	if cfg.Report.JournalPath != "" {
		journal, err := os.OpenFile(cfg.Report.JournalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Report.JournalPath).Msg("unable to open trade journal")
		}
		defer journal.Close()
		sinks = append(sinks, report.NewJournal(journal))
	}
	dispatcher := report.NewDispatcher(ctx, cfg.Report.Workers, cfg.Report.Buffer, sinks...)
	eng.SetReporter(dispatcher)

	var in io.Reader = os.Stdin
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			log.Fatal().Err(err).Str("path", *script).Msg("unable to open script")
		}
		defer f.Close()
		in = f
	}

	log.Info().
		Str("quote", string(eng.Quote())).
		Int("assets", len(cfg.Exchange.Assets)).
		Msg("exchange running")

	if err := console.New(eng, tokens, cfg.Exchange.Decimals, os.Stdout).Run(ctx, in); err != nil {
		log.Error().Err(err).Msg("console stopped")
	}
	if err := dispatcher.Close(); err != nil {
		log.Error().Err(err).Msg("trade reports not fully delivered")
	}
	log.Info().Msg("exchange shut down")
}

func setupLogger(cfg *config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel())
	if cfg.Logger.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
