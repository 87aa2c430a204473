package main

import (
	"fmt"
	"log"
	"net/http"

	handler "spendhub-backend/api"
	"spendhub-backend/pkg/config"
	"spendhub-backend/pkg/database"
)

func main() {
	cfg, err := config.GetCached()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	db, err := database.GetDatabase(database.DatabaseConfig{
		UseMemoryDB: cfg.UseMemoryDB,
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	router := handler.NewRouter(cfg, db)

	addr := ":" + cfg.Port
	fmt.Printf("listening on %s (%s)\n", addr, cfg.Environment)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
