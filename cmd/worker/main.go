package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus/internal/config"
	"campus/internal/docstore"
	"campus/internal/queue"
	"campus/internal/reconcile"
	"campus/internal/store"
)

// Worker consumes reconcile messages and periodically sweeps every student,
// repairing dual-location records the writer or the deletion orchestrator
// left half-done.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	docs, err := docstore.NewPostgres(ctx, db.Client)
	if err != nil {
		log.Fatalf("docstore init failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campus:reconcile")
	}

	sweeper := reconcile.NewSweeper(docs)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	log.Println("worker started, waiting for messages...")
	for {
		select {
		case <-ctx.Done():
			log.Println("worker stopped")
			return

		case <-ticker.C:
			log.Println("scheduled full sweep starting")
			if err := sweeper.SweepAll(ctx); err != nil {
				log.Printf("full sweep failed: %v", err)
			} else {
				log.Println("scheduled full sweep done")
			}

		case msg, ok := <-messages:
			if !ok {
				log.Println("worker stopped")
				return
			}
			switch msg.Kind {
			case queue.KindReconcileStudent:
				if err := sweeper.SweepStudent(ctx, msg.StudentID); err != nil {
					log.Printf("sweep student %s failed: %v", msg.StudentID, err)
				}
			case queue.KindReconcileAll:
				if err := sweeper.SweepAll(ctx); err != nil {
					log.Printf("full sweep failed: %v", err)
				}
			default:
				log.Printf("skipping unknown message kind %q", msg.Kind)
			}
		}
	}
}
