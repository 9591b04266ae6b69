package main

import (
	"context"
	"log"
	"time"

	"sftgen/internal/activities"
	"sftgen/internal/app"
	"sftgen/internal/config"
	"sftgen/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{MaxConcurrentActivityExecutionSize: 1})
	workflows.Register(w)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()
	activities.Register(w, activities.New(rt))

	log.Printf("sftgen worker listening on %s queue=%s provider=%q model=%s store=%s", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.LLMProviders, cfg.Model, rt.Config.Store)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
