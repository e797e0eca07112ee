package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/noah-isme/medsurat-api/api/swagger"
)

// @title MedSurat API
// @version 1.0.0
// @description Medical certificate requests, officer approval and public verification.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
