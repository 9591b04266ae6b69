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
	cfg.BindQuestionFlags(flag.CommandLine)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	log.Printf("sftgen questions docs_dir=%s pattern=%s batch_size=%d num_questions=%d provider=%q model=%s store=%s resume=%t",
		cfg.DocsDir, cfg.FilePattern, cfg.BatchSize, cfg.NumQuestions, cfg.LLMProviders, cfg.Model, rt.Config.Store, cfg.Resume)
	sum, err := rt.RunQuestions(ctx)
	if err != nil && pipeline.IsFatal(err) {
		log.Printf("question stage stopped: %v", err)
		rt.Close()
		os.Exit(1)
	}
	if err != nil {
		log.Printf("question stage error: %v", err)
	}
	log.Printf("question stage finished documents=%d succeeded=%d skipped=%d failed=%d questions=%d",
		sum.Documents, sum.Succeeded, sum.Skipped, sum.Failed, sum.Records)
}
