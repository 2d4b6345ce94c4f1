package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/config"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/pipeline"
)

func main() {
	mode := flag.String("mode", "live", "live|day|backfill")
	configPath := flag.String("config", "", "path to config.yml (default: ./config.yml or ./config/config.yml)")
	operator := flag.String("operator", "", "operator code (overrides config)")
	date := flag.String("date", "", "service date YYYY-MM-DD for -mode=day (default: today)")
	start := flag.String("start", "", "first date of a backfill (overrides config)")
	end := flag.String("end", "", "last date of a backfill (overrides config)")
	stride := flag.Int("stride", 0, "days between backfilled dates (overrides config)")
	dryRun := flag.Bool("dry-run", false, "write CSV files only")
	force := flag.Bool("force", false, "rebuild cached artifacts and rerun completed days")
	flag.Parse()

	logging.InitLogging()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("config: %v", err)
	}
	if *operator != "" {
		cfg.Operator = *operator
	}
	if *start != "" {
		cfg.Backfill.StartDate = *start
	}
	if *end != "" {
		cfg.Backfill.EndDate = *end
	}
	if *stride > 0 {
		cfg.Backfill.StrideDays = *stride
	}
	if *dryRun {
		cfg.Store.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, *force)
	if err != nil {
		fail("%v", err)
	}
	defer app.Close()

	switch *mode {
	case "live":
		app.pipeline.RunDay(ctx, pipeline.ModeLive, cfg.Operator, app.pipeline.Today())
	case "day":
		d := *date
		if d == "" {
			d = app.pipeline.Today()
		}
		app.pipeline.RunDay(ctx, pipeline.ModeHistorical, cfg.Operator, d)
	case "backfill":
		if cfg.Backfill.StartDate == "" || cfg.Backfill.EndDate == "" {
			app.Close()
			fail("backfill needs -start and -end")
		}
		summary, err := app.pipeline.Backfill(ctx, cfg.Operator, cfg.Backfill.StartDate, cfg.Backfill.EndDate, cfg.Backfill.StrideDays)
		for _, d := range summary.Days {
			logging.Logf("  %s %-5s %4d rows %s", d.Date, d.Kind, d.Rows, d.Reason)
		}
		if err != nil {
			app.Close()
			fail("%v", err)
		}
	default:
		app.Close()
		fail("unknown mode %q", *mode)
	}
}

func fail(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, "gtfsrt-delay-features: "+format+"\n", v...)
	os.Exit(1)
}
