package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	polyarb "github.com/GoPolymarket/polymarket-arb"
	"github.com/GoPolymarket/polymarket-arb/pkg/bot"
	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
)

func main() {
	var (
		envFile   = flag.String("env", ".env", "Optional dotenv file")
		oppsFile  = flag.String("opportunities", "", "JSON file of opportunities, re-read every scan (default stdin, single scan)")
		once      = flag.Bool("once", false, "Run a single scan and exit")
		settle    = flag.Bool("settle", false, "Only close resolved positions, then exit")
		approve   = flag.Bool("approve", false, "Ensure venue token approvals before trading")
		live      = flag.Bool("live", false, "Submit real orders (overrides ARB_DRY_RUN)")
		verbose   = flag.Bool("v", false, "Debug logging")
		persistIv = flag.Duration("persist-every", 30*time.Second, "State persistence interval in loop mode")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load %s: %v", *envFile, err)
	}
	if *verbose {
		logger.SetLevel("debug")
	}

	cfg := polyarb.ConfigFromEnv()
	if *live {
		cfg.Engine.DryRun = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := polyarb.NewClient(ctx, polyarb.WithConfig(cfg))
	if err != nil {
		log.Fatalf("create engine failed: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("shutdown: %v", err)
		}
	}()
	for _, e := range client.InitErrors {
		logger.Warn("%v", e)
	}

	mode := "DRY RUN"
	if !cfg.Engine.DryRun {
		mode = "LIVE"
	}
	fmt.Printf("arb-engine %s | mode=%s venues=%v markets=%d\n", mode, cfg.Engine.Mode, cfg.Venues, client.Registry.Len())

	if err := client.Authenticate(ctx); err != nil {
		log.Fatalf("authenticate failed: %v", err)
	}
	if *approve {
		threshold := new(big.Int).Lsh(big.NewInt(1), 128)
		if err := client.EnsureApprovals(ctx, threshold); err != nil {
			log.Fatalf("approvals failed: %v", err)
		}
	}

	if *settle {
		n := client.Engine.CloseResolved(ctx)
		fmt.Printf("closed %d resolved position(s)\n", n)
		return
	}

	source := newFileSource(*oppsFile)
	runner := client.Runner(source)

	if *once || *oppsFile == "" {
		if err := runner.Tick(ctx); err != nil {
			logger.Error("scan: %v", err)
		}
		printStatus(client.Engine.Status())
		return
	}

	if err := runner.Start(ctx); err != nil {
		log.Fatalf("start runner: %v", err)
	}
	ticker := time.NewTicker(*persistIv)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			runner.Stop()
			printStatus(client.Engine.Status())
			return
		case <-ticker.C:
			if err := client.Persist(); err != nil {
				logger.Warn("persist state: %v", err)
			}
		}
	}
}

func printStatus(st bot.Status) {
	fmt.Printf("trades=%d failures=%d skips=%d open_positions=%d paused=%t\n",
		st.Trades, st.Failures, st.Skips, st.OpenPositions, st.Paused)
	for venue, n := range st.Nonces {
		fmt.Printf("  nonce %s=%d\n", venue, n)
	}
	for market, until := range st.Cooldowns {
		fmt.Printf("  cooldown %s until %s\n", market, until.Format(time.RFC3339))
	}
	if st.LastError != "" {
		fmt.Printf("  last error: %s\n", st.LastError)
	}
}
