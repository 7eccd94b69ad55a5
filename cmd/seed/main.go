// Command main fills the database with demo posts in every lifecycle state.
package main

import (
	"context"
	"flag"
	"log"

	"postflow/internal/bootstrap"
	"postflow/internal/config"
	"postflow/internal/database"
	"postflow/internal/repository"
	"postflow/internal/seed"
	"postflow/internal/service"
	"postflow/internal/validation"
)

func main() {
	numPosts := flag.Int("posts", 40, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Delete existing posts before seeding")
	fakerSeed := flag.Int64("seed", 0, "Faker seed (0 picks a random one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = database.Close(rt.DB) }()

	if *shouldClean {
		if err := seed.Clear(ctx, rt.DB); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	lifecycle := service.NewLifecycleService(
		repository.NewPostRepository(rt.DB, rt.Locker),
		validation.NewValidator(rt.Classifier),
	)
	res, err := seed.NewSeeder(lifecycle, *fakerSeed).Posts(ctx, *numPosts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d posts: %v", *numPosts, res)
}
