package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/courtwise/sentencing-service/internal/calc"
	"github.com/courtwise/sentencing-service/internal/chat"
	"github.com/courtwise/sentencing-service/internal/config"
	"github.com/courtwise/sentencing-service/internal/httpapi"
	"github.com/courtwise/sentencing-service/internal/retrieval"
	"github.com/courtwise/sentencing-service/internal/store"
)

func main() {
	addr := flag.String("addr", "", "Listen address (overrides ADDR)")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		settings.Addr = *addr
	}

	st, closeStore, err := buildStore(settings)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	var embedder retrieval.Embedder
	if settings.OpenAIAPIKey != "" {
		embedder = retrieval.NewOpenAIEmbedder(retrieval.OpenAIEmbedderConfig{
			APIKey: settings.OpenAIAPIKey,
			Model:  settings.OpenAIEmbeddingModel,
		})
	} else {
		log.Printf("sentencing-api embeddings_disabled reason=no_openai_key")
	}

	retrievalSvc := retrieval.NewService(retrieval.ServiceConfig{
		Store:              st,
		Embedder:           embedder,
		DefaultTopK:        settings.RetrievalTopK,
		EnableVectorSearch: settings.EnableVectorSearch,
	})

	calculator := calc.New(st)
	defer calculator.Close()

	var llm chat.LLMCaller
	if settings.AnthropicAPIKey != "" {
		caller, err := chat.NewAnthropicCallerFromEnv()
		if err != nil {
			log.Printf("sentencing-api chat_polish_disabled err=%v", err)
		} else {
			llm = caller
		}
	}
	orchestrator := chat.NewOrchestrator(calculator, retrievalSvc, llm)

	handler := httpapi.NewServer(calculator, retrievalSvc, orchestrator)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log.Printf("sentencing-api listening on %s (backend=%s, vector=%v)", settings.Addr, settings.StoreBackend, settings.EnableVectorSearch)
	srv := &http.Server{Addr: settings.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func buildStore(settings config.Settings) (store.Store, func(), error) {
	if settings.StoreBackend == config.BackendSQLite {
		s, err := store.NewSQLiteStore(settings.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	s, err := store.NewSupabaseStore(store.SupabaseConfig{
		URL:        settings.SupabaseURL,
		ServiceKey: settings.SupabaseServiceKey,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}
