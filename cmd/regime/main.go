package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/analyze"
	"github.com/Alias1177/volregime/internal/logging"
	"github.com/Alias1177/volregime/internal/metrics"
	"github.com/Alias1177/volregime/models"
	"github.com/rs/zerolog/log"
)

// input is one request as it appears in a replay file
type input struct {
	Symbol     string                       `json:"symbol"`
	Now        time.Time                    `json:"now"`
	Timeframes map[models.Timeframe]frameIn `json:"timeframes"`
}

type frameIn struct {
	Bars       []map[string]any    `json:"bars"`
	Indicators models.IndicatorSet `json:"indicators"`
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	inputPath := flag.String("input", "-", "replay file with one JSON request per value, - for stdin")
	asJSON := flag.Bool("json", false, "print results as JSON lines")
	flag.Parse()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging and metrics
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	metrics.Register()
	printConfig(cfg)

	// 3. Read requests
	in := os.Stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *inputPath).Msg("Failed to open replay file")
		}
		defer f.Close()
		in = f
	}
	requests, err := decodeRequests(in)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read replay file")
	}
	log.Info().Int("requests", len(requests)).Msg("Replaying requests")

	// 4. Classify
	analyzer := analyze.New(ctx, cfg)
	defer analyzer.Close()

	for _, req := range requests {
		if ctx.Err() != nil {
			break
		}
		res := analyzer.DetectRegime(ctx, req)
		if *asJSON {
			if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
				log.Error().Err(err).Msg("Failed to encode result")
			}
			continue
		}
		printResult(res)
	}
}

// setupSignalHandling cancels the replay on interrupt
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, stopping replay...")
		cancel()
	}()
}

// decodeRequests reads consecutive JSON values until EOF
func decodeRequests(r io.Reader) ([]analyze.Request, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var requests []analyze.Request
	for {
		var in input
		err := dec.Decode(&in)
		if errors.Is(err, io.EOF) {
			return requests, nil
		}
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", len(requests)+1, err)
		}

		req := analyze.Request{
			Symbol: in.Symbol,
			Now:    in.Now,
			Frames: make(map[models.Timeframe]analyze.Frame, len(in.Timeframes)),
		}
		for tf, f := range in.Timeframes {
			req.Frames[tf] = analyze.Frame{Bars: f.Bars, Indicators: f.Indicators}
		}
		requests = append(requests, req)
	}
}

// printConfig outputs the settings that shape classification
func printConfig(cfg *config.Config) {
	log.Info().
		Str("ShortTimeframe", string(cfg.Timeframes.Short)).
		Str("MediumTimeframe", string(cfg.Timeframes.Medium)).
		Str("LongTimeframe", string(cfg.Timeframes.Long)).
		Str("PrimaryTimeframe", string(cfg.Timeframes.PrimaryTimeframe())).
		Str("StoreDriver", cfg.Store.Driver).
		Dur("CacheTTL", cfg.Store.CacheTTL).
		Float64("ADXChopCeiling", cfg.Thresholds.ADXChopCeiling).
		Float64("SpikeRatio", cfg.Thresholds.SpikeRatio).
		Dur("BreakoutRecency", cfg.Thresholds.BreakoutRecency).
		Int("SymbolOverrides", len(cfg.Symbols)).
		Msg("Configuration loaded")
}

// printResult outputs one classification
func printResult(res models.RegimeResult) {
	fmt.Println("\n===== VOLATILITY REGIME =====")
	fmt.Printf("%s @ %s\n", res.Symbol, res.EvaluatedAt.Format(time.RFC3339))
	fmt.Printf("Regime: %s | Confidence: %.1f | Data: %s\n", res.Regime, res.Confidence, res.DataQuality)
	fmt.Printf("Composite: ATR ratio %.2f, BB width ratio %.2f, ADX %.1f, volume confirmed %v\n",
		res.Composite.ATRRatio, res.Composite.BBWidthRatio, res.Composite.ADX, res.Composite.VolumeConfirmed)

	timeframes := make([]models.Timeframe, 0, len(res.ATRTrends))
	for tf := range res.ATRTrends {
		timeframes = append(timeframes, tf)
	}
	sort.Slice(timeframes, func(i, j int) bool { return timeframes[i].Duration() < timeframes[j].Duration() })
	for _, tf := range timeframes {
		atr := res.ATRTrends[tf]
		fmt.Printf("  %-6s ATR %s (ratio %.2f) | BB pct %.0f | wick %+.1f%% | intrabar rising %v\n",
			tf, atr.Direction, atr.ATRRatio, res.BBWidths[tf].Percentile,
			res.WickVariances[tf].ChangePct, res.Intrabar[tf].IsRising)
	}

	if b := res.TimeSinceBreakout; b != nil {
		fmt.Printf("Last breakout: %s at %.5f, %.0f min ago (recent: %v)\n", b.Type, b.Price, b.Minutes, b.IsRecent)
	}
	if s := res.SessionTransition; s.InWindow {
		fmt.Printf("Session transition: %s (%+.0f min)\n", s.Transition, s.MinutesFrom)
	}
	if res.VolatilitySpike.IsSpike {
		fmt.Printf("ATR spike: %.2fx baseline (temporary: %v)\n", res.VolatilitySpike.Ratio, res.VolatilitySpike.IsTemporary)
	}

	if len(res.Candidates) > 1 {
		fmt.Println("\nCandidates:")
		for _, c := range res.Candidates {
			fmt.Printf("- %s (strength %.2f): %v\n", c.Regime, c.Strength, c.Reasons)
		}
	}
	fmt.Printf("\nHints: style %s, size x%.1f, avoid breakouts %v, widen stops %v\n",
		res.Hints.PreferredStyle, res.Hints.SizeMultiplier, res.Hints.AvoidBreakoutEntries, res.Hints.WidenStops)
	for _, w := range res.Warnings {
		fmt.Printf("WARNING: %s\n", w)
	}
}
