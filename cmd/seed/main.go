// Command seed fills the database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/seed"
	"agora/internal/storage"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 60, "Number of posts to create")
	maxComments := flag.Int("comments", 4, "Maximum comments per post")
	reactionChance := flag.Float64("reactions", 0.3, "Chance that a user reacts to each post or comment")
	randSeed := flag.Int64("seed", 1, "Random seed")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	fixture := flag.String("fixture", "", "YAML fixture to load instead of random data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := middleware.SetupLogger(cfg.Env)
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx := context.Background()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}
	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Media storage setup failed: %v", err)
	}

	s := seed.NewSeeder(db, blobs)

	var sum seed.Summary
	if *fixture != "" {
		fx, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		if *shouldClean {
			if err := s.ClearAll(ctx); err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		sum, err = s.Apply(ctx, fx)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		sum, err = s.Run(ctx, seed.Options{
			NumUsers:       *numUsers,
			NumPosts:       *numPosts,
			MaxComments:    *maxComments,
			ReactionChance: *reactionChance,
			Seed:           *randSeed,
			ShouldClean:    *shouldClean,
		})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	logger.Info("seeding finished", "created", sum.String(), "default_password", seed.DefaultPassword)
}
