package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telcoza.com/net-insight/internal/api"
	"telcoza.com/net-insight/internal/config"
	"telcoza.com/net-insight/internal/core"
	"telcoza.com/net-insight/internal/lake"
	"telcoza.com/net-insight/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for building the analytical database from flat files
	ingestFlag := flag.Bool("ingest", false, "Build the analytical database from CSV files in DATA_DIR and exit")
	flag.Parse()

	if *ingestFlag {
		log.Println("Starting analytical database build...")
		loaded, err := lake.BuildLake(context.Background(), config.AppConfig.LakePath, config.AppConfig.DataDir)
		if err != nil {
			log.Fatalf("Analytical database build failed: %v", err)
		}
		log.Printf("Build complete. Loaded %d table(s). Exiting.", loaded)
		os.Exit(0)
	}

	// Open the analytical database (read-only)
	analyticalLake, err := lake.NewLake(config.AppConfig.LakePath)
	if err != nil {
		log.Fatalf("Failed to open analytical database (run with -ingest first?): %v", err)
	}
	defer analyticalLake.Close()

	// Initialize operational store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.StorePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize LLM service
	llmService := core.NewLLMService()
	defer llmService.Close()

	// Load golden examples and build the retrieval index
	examples, err := core.LoadGoldenExamples(config.AppConfig.ExamplesPath)
	if err != nil {
		log.Fatalf("Failed to load golden examples: %v", err)
	}
	var retriever core.Retriever
	retriever, err = core.NewVectorRetriever(context.Background(), examples, llmService.GetEmbedding)
	if err != nil {
		log.Printf("Vector index build failed (%v), using lexical retrieval", err)
		retriever = core.NewLexicalRetriever(examples)
	} else {
		log.Printf("Vector index built over %d golden example(s).", len(examples))
	}

	// Initialize the analyst workflow and its service wrapper
	analyst := core.NewAnalyst(llmService, analyticalLake, retriever, dbStore,
		config.AppConfig.MaxAttempts, config.AppConfig.RetrieveTopK)
	insightService := core.NewInsightService(dbStore, analyst, analyticalLake)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(insightService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second, // Adjusted for potentially slower LLM handshakes
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
