package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/odyssey-erp/sitecost/internal/actors"
	"github.com/odyssey-erp/sitecost/internal/app"
	"github.com/odyssey-erp/sitecost/internal/catalog"
	"github.com/odyssey-erp/sitecost/internal/costs"
	"github.com/odyssey-erp/sitecost/internal/demo"
	"github.com/odyssey-erp/sitecost/internal/partition"
	"github.com/odyssey-erp/sitecost/internal/platform/cache"
	"github.com/odyssey-erp/sitecost/internal/platform/db"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Migrating actors and catalog...")
	actorRepo := actors.NewRepository(pool)
	if err := actorRepo.Migrate(ctx); err != nil {
		log.Fatalf("migrate actors: %v", err)
	}
	catalogRepo := catalog.NewRepository(pool)
	if err := catalogRepo.Migrate(ctx); err != nil {
		log.Fatalf("migrate catalog: %v", err)
	}

	fmt.Println("→ Seeding", demo.Tenant, "(actors, catalog, daily usage partitions)...")
	registry := partition.NewRegistry(partition.NewPostgresStore(pool))
	defer func() { _ = registry.Close() }()
	seeded, err := demo.Seed(ctx, actorRepo, catalogRepo, registry, time.Now())
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	fmt.Println("→ Invalidating cached aggregations and issuing demo sessions...")
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		fmt.Println("  skipped:", err)
	} else {
		defer func() { _ = redisClient.Close() }()
		if err := costs.NewCache(redisClient, time.Minute).Bump(ctx); err != nil {
			fmt.Println("  cache bump failed:", err)
		}
		sessions := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL)
		for _, name := range []string{"root", "meera"} {
			a := seeded[name]
			token, err := sessions.Issue(ctx, shared.Caller{ID: a.ID, Username: a.Username, Role: a.Role, Tenant: a.Tenant})
			if err != nil {
				log.Fatalf("issue session for %s: %v", name, err)
			}
			fmt.Printf("  %s (%s): Authorization: Bearer %s\n", name, a.Role, token)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}
