package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/smart-affiliate/internal/app"
	"github.com/ignite/smart-affiliate/internal/config"
	"github.com/ignite/smart-affiliate/internal/discovery"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run discovery once, print the ranked list and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if *once {
		if err := runOnce(ctx, a); err != nil {
			log.Fatalf("Discovery run failed: %v", err)
		}
		return
	}

	scheduler, err := app.StartScheduler(a.Service, cfg.Schedule)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Printf("Discovery worker running (%s %s)", cfg.Schedule.Cron, cfg.Schedule.Timezone)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	scheduler.Stop()
	log.Println("Worker stopped")
}

// runOnce performs a single run and writes the report plus ranked products
// to stdout as JSON.
func runOnce(ctx context.Context, a *app.App) error {
	report, err := a.Service.RunOnce(ctx)
	if err != nil {
		return err
	}
	products, err := a.Service.Latest(ctx, discovery.ListFilter{})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"run":      report,
		"products": products,
	})
}
