package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sftgen/internal/app"
	"sftgen/internal/config"
	"sftgen/internal/pipeline"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	cfg.BindAnswerFlags(flag.CommandLine)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	log.Printf("sftgen answers docs_dir=%s questions=%s provider=%q model=%s store=%s resume=%t",
		cfg.DocsDir, cfg.QuestionsCSV, cfg.LLMProviders, cfg.Model, rt.Config.Store, cfg.Resume)
	sum, err := rt.RunAnswers(ctx)
	if err != nil && pipeline.IsFatal(err) {
		log.Printf("answer stage stopped: %v", err)
		rt.Close()
		os.Exit(1)
	}
	if err != nil {
		log.Printf("answer stage error: %v", err)
	}
	log.Printf("answer stage finished rows_succeeded=%d skipped=%d failed=%d invalid=%d",
		sum.Succeeded, sum.Skipped, sum.Failed, sum.Invalid)
}
