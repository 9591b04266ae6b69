package main

import (
	"log"
	"net/http"

	"sftgen/internal/api"
	"sftgen/internal/config"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer tc.Close()

	h := api.NewServer(cfg, tc)
	log.Printf("sftgen api listening on %s queue=%s", cfg.APIAddr, cfg.TemporalTaskQueue)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
