package main

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/archivelab/testimony/internal/logger"
	"github.com/archivelab/testimony/internal/server"
)

func main() {
	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment as-is")
	}

	srv, err := server.NewServer(log.Entry)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize server")
	}
	defer srv.Close(context.Background())

	r := srv.SetupRouter()

	log.WithField("port", srv.Port()).Info("starting server")
	if err := r.Run(":" + srv.Port()); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
