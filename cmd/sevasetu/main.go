package main

import (
	"log"

	"github.com/MrSnakeDoc/sevasetu/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ sevasetu failed to start: %v", err)
	}
}
