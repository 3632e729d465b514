// Package bootstrap wires the campaign pipeline from configuration. Both
// binaries (the weekly worker and the trigger API server) share the same
// dependency graph; only the trigger differs.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/colively/campaign-engine/internal/audit"
	"github.com/colively/campaign-engine/internal/campaign"
	"github.com/colively/campaign-engine/internal/catalog"
	"github.com/colively/campaign-engine/internal/config"
	"github.com/colively/campaign-engine/internal/delivery"
	"github.com/colively/campaign-engine/internal/pkg/logger"
	"github.com/colively/campaign-engine/internal/pkg/runlock"
	"github.com/colively/campaign-engine/internal/recommend"
	"github.com/colively/campaign-engine/internal/render"
	"github.com/colively/campaign-engine/internal/store"
	"github.com/colively/campaign-engine/internal/store/postgres"
)

// App holds the wired pipeline and the handles the binaries need.
type App struct {
	Config       *config.Config
	DB           *sql.DB
	Store        *postgres.Store
	Renderer     *render.Renderer
	Assembler    *recommend.Assembler
	Orchestrator *campaign.Orchestrator
	RunLock      runlock.Lock
}

// New builds the full pipeline from configuration: Postgres store, optional
// Redis region cache, SES delivery client, DynamoDB/S3 audit recorder, and
// the orchestrator on top.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.RedactPII != nil {
		logger.SetRedactPII(*cfg.Log.RedactPII)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pgStore := postgres.NewStore(db)

	var rdb *redis.Client
	var regions recommend.RegionSource = pgStore
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		regions = store.NewRegionCache(pgStore, rdb, cfg.Redis.TTL())
		logger.Info("region cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL().String())
	}

	sender, err := delivery.NewClient(ctx, cfg.SES)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating delivery client: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Audit.AWSRegion))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading AWS config for audit: %w", err)
	}
	var s3Client *s3.Client
	if cfg.Audit.S3Bucket != "" {
		s3Client = s3.NewFromConfig(awsCfg)
	}
	recorder := audit.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.Audit.DynamoDBTable, s3Client, cfg.Audit.S3Bucket)

	renderer := render.NewRenderer(cfg.Campaign.SiteBaseURL)
	assembler := recommend.NewAssembler(pgStore, regions)
	lookup := catalog.NewLookup(pgStore, nil)

	orch := campaign.NewOrchestrator(pgStore, lookup, assembler, renderer, sender, recorder, cfg.Campaign)

	lockTTL := cfg.Campaign.RunBudget()
	if lockTTL <= 0 {
		lockTTL = 2 * time.Hour
	}

	return &App{
		Config:       cfg,
		DB:           db,
		Store:        pgStore,
		Renderer:     renderer,
		Assembler:    assembler,
		Orchestrator: orch,
		RunLock:      runlock.ForCampaign(rdb, db, cfg.Campaign.Name, lockTTL),
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
