package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/awspkg"
	"github.com/jpkontreras/cw-sub006/catalog"
	"github.com/jpkontreras/cw-sub006/controllers"
	"github.com/jpkontreras/cw-sub006/database"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/kafka"
	"github.com/jpkontreras/cw-sub006/logger"
	"github.com/jpkontreras/cw-sub006/models"
	"github.com/jpkontreras/cw-sub006/offers"
	"github.com/jpkontreras/cw-sub006/projections"
	"github.com/jpkontreras/cw-sub006/repository"
	"github.com/jpkontreras/cw-sub006/routes"
	"github.com/jpkontreras/cw-sub006/services"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.PostgresDSN(), log,
		&eventstore.EventRecord{},
		&models.SessionView{},
		&models.OrderView{},
		&models.OrderStatusHistory{},
		&models.DailyOrderStats{},
		&models.StatsAppliedEvent{},
		&models.ProjectorCheckpoint{},
		&offers.Offer{},
		&offers.Redemption{},
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	var cache *repository.SessionCache
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, running without session cache", zap.Error(err))
	} else {
		cache = repository.NewSessionCache(redisClient, cfg.CacheTTL)
		defer redisClient.Close()
	}

	store := eventstore.NewPostgresStore(db)
	gateway := catalog.NewHTTPGateway(cfg.CatalogServiceURL, cfg.CatalogTimeout)

	sessionViews := repository.NewGormSessionViewRepository(db)
	orderViews := repository.NewGormOrderViewRepository(db)
	checkpoints := repository.NewGormCheckpointRepository(db)
	offerRepo := repository.NewGormOfferRepository(db)
	statsRepo := repository.NewGormStatsRepository(db)

	dispatcher := projections.NewDispatcher(checkpoints, log,
		projections.NewSessionProjector(sessionViews, cache, log),
		projections.NewOrderProjector(orderViews, store, log),
		projections.NewAnalyticsProjector(statsRepo, log),
	)

	sinks := []services.EventSink{dispatcher}

	producer := kafka.NewProducer([]string{cfg.KafkaBrokers}, cfg.KafkaTopic, log)
	defer producer.Close()
	sinks = append(sinks, producer)

	var sqsConsumer *awspkg.SQSConsumer
	if cfg.SNSTopicArn != "" || cfg.SQSQueueURL != "" {
		awsCfg, err := awspkg.LoadConfig(ctx, cfg.AWSRegion)
		if err != nil {
			log.Warn("AWS config unavailable, SNS/SQS disabled", zap.Error(err))
		} else {
			if cfg.SNSTopicArn != "" {
				sinks = append(sinks, services.NewSNSNotifier(awspkg.NewSNSClient(awsCfg, log), cfg.SNSTopicArn, log))
			}
			if cfg.SQSQueueURL != "" {
				sqsConsumer = awspkg.NewSQSConsumer(awsCfg, cfg.SQSQueueURL, log)
			}
		}
	}

	sink := services.NewMultiSink(log, sinks...)

	sessionSvc := services.NewSessionService(store, gateway, sessionViews, cache, sink, services.SessionConfig{
		RecoveryTTL:    cfg.RecoveryTTL,
		AbandonAfter:   cfg.AbandonAfter,
		CatalogTimeout: cfg.CatalogTimeout,
	}, log)

	orderCfg := services.OrderConfig{
		TaxRate:          cfg.TaxRate,
		AuthThresholdPct: cfg.AuthThresholdPct,
		CatalogTimeout:   cfg.CatalogTimeout,
	}
	orderSvc := services.NewOrderService(store, gateway, offerRepo, orderViews, sink, orderCfg, log)
	converter := services.NewConverter(store, gateway, offerRepo, sink, orderCfg, log)
	offerSvc := services.NewOfferService(offerRepo, log)

	reaper := services.NewReaper(sessionSvc, sessionViews, cfg.ReapInterval, cfg.AbandonAfter, log)
	go reaper.Run(ctx)

	consumer := kafka.NewConsumer([]string{cfg.KafkaBrokers}, cfg.KafkaTopic, cfg.KafkaGroupID, dispatcher, log)
	go consumer.Run(ctx)

	if sqsConsumer != nil {
		go func() {
			// Same envelope payload as kafka; the dispatcher's checkpoints
			// make the duplicate feed harmless.
			_ = sqsConsumer.StartPolling(ctx, func(ctx context.Context, body string) error {
				var env eventstore.Envelope
				if err := json.Unmarshal([]byte(body), &env); err != nil {
					log.Error("Invalid SQS event envelope, dropping", zap.Error(err))
					return nil
				}
				return dispatcher.Publish(ctx, []eventstore.Envelope{env})
			})
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger(log))

	routes.RegisterRoutes(router,
		controllers.NewSessionController(sessionSvc, converter),
		controllers.NewOrderController(orderSvc),
		controllers.NewOfferController(offerSvc),
		cache, cfg.CacheTTL, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
