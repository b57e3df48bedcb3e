package main

import (
	"fmt"
	"os"

	"github.com/civicweave/civicweave-backend/internal/app"
	"github.com/civicweave/civicweave-backend/internal/platform/envutil"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := ":" + envutil.String("PORT", "8080")
	a.Log.Info("Starting server", "addr", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
