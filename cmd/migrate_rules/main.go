package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"go-cats/internal/config"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// migrate_rules copies SLA rules from the legacy Postgres database into the sla_rules
// collection. Rules are matched by name; an existing rule is never overwritten.
func main() {
	dryRun := flag.Bool("dry-run", false, "convert and validate rules without writing them")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LegacyPostgresDSN == "" {
		log.Fatal("LEGACY_POSTGRES_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := sql.Open("postgres", cfg.LegacyPostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pg.Close()

	if err := pg.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping postgres: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	collection := client.Database(cfg.DBName).Collection("sla_rules")

	rows, err := pg.QueryContext(ctx, legacyQuery)
	if err != nil {
		log.Fatalf("Failed to read legacy sla_rules: %v", err)
	}
	defer rows.Close()

	var inserted, skipped, invalid int
	for rows.Next() {
		row, err := scanLegacyRule(rows)
		if err != nil {
			log.Fatalf("Failed to scan legacy rule: %v", err)
		}

		rule, err := toRule(row, cfg.DefaultTimezone)
		if err != nil {
			log.Printf("Skipping legacy rule %s (%s): %v", row.ID, row.Name, err)
			invalid++
			continue
		}

		if *dryRun {
			log.Printf("Would import %q (%s/%s, %.0fh)", rule.Name, rule.CaseKind, rule.CaseType, rule.ResolutionTime)
			continue
		}

		res, err := collection.UpdateOne(ctx,
			bson.M{"name": rule.Name},
			bson.M{"$setOnInsert": rule},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			log.Fatalf("Failed to import rule %q: %v", rule.Name, err)
		}
		if res.UpsertedCount == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to iterate legacy rules: %v", err)
	}

	log.Printf("Imported %d rules, %d already present, %d invalid", inserted, skipped, invalid)
}
