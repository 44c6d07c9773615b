package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serverless-http-adapter/internal/config"
	"serverless-http-adapter/internal/framework"
	"serverless-http-adapter/pkg/lambda"
	"serverless-http-adapter/pkg/server"

	_ "serverless-http-adapter/internal/apps"

	"github.com/sirupsen/logrus"
)

// main runs a local server that replays invocation events against the
// runtime: POST an API Gateway event to /invoke and receive the envelope.
func main() {
	logrus.SetFormatter(config.LogFormatter())

	rt, err := lambda.GetOrCreate(config.LoadFromEnvironment,
		lambda.WithFrameworkResolver(framework.NewGinResolver(true)),
	)
	if err != nil {
		log.Fatalf("Failed to bootstrap runtime: %v", err)
	}

	port := config.GetEnv("PORT", "8081")

	container, err := server.NewContainer(rt, ":"+port)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}

	// Graceful shutdown
	go func() {
		if err := container.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Invocation server started on port %s", port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := container.Close(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
