package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/custodia-labs/safevault-backend/internal/chain"
	"github.com/custodia-labs/safevault-backend/internal/custody"
	"github.com/custodia-labs/safevault-backend/internal/deployment"
	"github.com/custodia-labs/safevault-backend/internal/pkg/middleware"
	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"github.com/custodia-labs/safevault-backend/internal/pkg/pubsub"
	"github.com/custodia-labs/safevault-backend/internal/relay"
	"github.com/custodia-labs/safevault-backend/internal/status"
	"github.com/custodia-labs/safevault-backend/internal/ws"
	"github.com/custodia-labs/safevault-backend/pkg/firebase"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	setupViper()
	setupZerolog()
	pubsub.InitPubSub()
	db := setupDb()
	chainClient := setupChainClient()
	apiRouter := setupApiRouter(db, chainClient)

	defer func() { pubsub.CloseClient() }()
	defer chainClient.Close()

	firebase.InitFirebaseSdk()

	port := viper.Get("PORT").(string)
	server := &http.Server{
		Addr:        port,
		Handler:     apiRouter,
		ReadTimeout: 10 * time.Second,
		// Deployment requests block on relay confirmation for up to a
		// minute, so the write timeout has to outlast it.
		WriteTimeout: 2 * time.Minute,
	}

	server.ListenAndServe()
}

func setupDb() *gorm.DB {
	dbUrl := viper.Get("DB_URL").(string)

	db, err := gorm.Open(postgres.Open(dbUrl), &gorm.Config{})

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	if err := db.AutoMigrate(&model.CustodyRecord{}, &model.DeploymentAttempt{}); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	sqlDb, _ := db.DB()

	sqlDb.SetMaxOpenConns(50)
	sqlDb.SetConnMaxLifetime(time.Minute * 10)

	return db
}

func setupChainClient() *chain.Client {
	client, err := chain.NewClient(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to chain RPC node")
	}
	return client
}

func setupApiRouter(db *gorm.DB, chainClient *chain.Client) *gin.Engine {
	apiRouter := gin.Default()
	routerGroup := apiRouter.Group("/safevault-api")

	middleware.RegisterGlobalMiddleware(apiRouter)

	provider := custody.NewPrivyProvider()
	registry := custody.NewRegistry(custody.NewStore(db), provider)

	ws.RegisterRoutes(routerGroup)
	custody.RegisterRoutes(routerGroup, registry)
	deployment.RegisterRoutes(routerGroup, db, registry, provider, relay.NewRelayClient())
	status.RegisterRoutes(routerGroup, chainClient)

	return apiRouter
}

func setupViper() {
	viper.AutomaticEnv()
	viper.SetConfigFile("./.env")
}

func setupZerolog() {
	zerolog.LevelFieldName = "severity"
	zerolog.TimestampFieldName = "time"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
