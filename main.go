package main

import (
	"context"
	"log"
	"time"

	"prepstage/internal/account"
	"prepstage/internal/api"
	"prepstage/internal/auth"
	"prepstage/internal/config"
	"prepstage/internal/interview"
	"prepstage/internal/llm"
	"prepstage/internal/redis"
	"prepstage/internal/retrieval"
	"prepstage/internal/speech"
	"prepstage/internal/storage"
	"prepstage/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	llmService, err := llm.NewService(cfg)
	if err != nil {
		log.Fatalf("init llm service: %v", err)
	}

	ctx := context.Background()
	bank, err := retrieval.LoadQuestionBank(ctx, cfg.Retrieval.QuestionBankPath, llmService)
	if err != nil {
		log.Fatalf("load question bank: %v", err)
	}
	log.Printf("question bank loaded: %d entries", bank.Size())
	resumeIndexes := retrieval.NewResumeIndexStore(llmService)

	accounts := account.NewService(db, rdb)
	authService := auth.NewService(db, 24*time.Hour)

	contexts := interview.NewContextStore(rdb)
	evaluator := interview.NewEvaluator(llmService, rdb)
	engine := interview.NewEngine(contexts, llmService, bank, resumeIndexes, accounts, evaluator)

	transcriber := speech.NewWhisperClient(cfg, rdb)
	synthesizer := speech.NewTTSClient(cfg, rdb)
	if cfg.Worker.Enabled {
		pool := worker.NewPool(cfg, rdb, transcriber, synthesizer)
		pool.Start()
		defer pool.Stop()
	}

	handlers := api.NewHandler(accounts, authService, engine, transcriber, synthesizer, resumeIndexes)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	if err := router.Run(cfg.Server.Address); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
