// README: Entry point; loads config, wires services, runs the realtime hub and HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"petride/internal/config"
	httptransport "petride/internal/http"
	"petride/internal/http/middleware"
	"petride/internal/infra"
	"petride/internal/logger"
	"petride/internal/maps"
	"petride/internal/metrics"
	"petride/internal/modules/chat"
	"petride/internal/modules/decline"
	"petride/internal/modules/driver"
	"petride/internal/modules/location"
	"petride/internal/modules/matching"
	"petride/internal/modules/notification"
	"petride/internal/modules/order"
	"petride/internal/modules/pet"
	"petride/internal/modules/pricing"
	"petride/internal/modules/settings"
	"petride/internal/modules/user"
	"petride/internal/modules/wallet"
	"petride/internal/notify"
	"petride/internal/payment"
	"petride/internal/realtime"
	"petride/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New("petride-api", cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("petride-api exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logger.ILogger) error {
	if err := infra.Migrate(cfg.DB.DSN, cfg.DB.MigrationsPath); err != nil {
		return err
	}
	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	bus, err := newBus(cfg, redisClient)
	if err != nil {
		return err
	}
	defer bus.Close()

	metrics.Register(prometheus.DefaultRegisterer)

	jwtAuth := infra.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	userStore := user.NewStore(dbPool)
	userSvc := user.NewService(userStore, jwtAuth)

	settingsStore := settings.NewStore(dbPool)
	declineStore := decline.NewStore(dbPool)

	locationStore := location.NewStore(dbPool, redisClient)
	locationSvc := location.NewService(locationStore)

	driverStore := driver.NewStore(dbPool)
	driverSvc := driver.NewService(driverStore, locationSvc, log)

	petSvc := pet.NewService(pet.NewStore(dbPool))
	inboxSvc := notification.NewService(notification.NewStore(dbPool))

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, declineStore, settingsStore, log)
	orderSvc.SetDrivers(driverStore)
	orderSvc.SetPets(petSvc)

	app, err := newFirebaseApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	chatSvc := chat.NewService(chat.NewStore(dbPool), orderSvc)
	media, mediaDir, err := newMediaStore(ctx, cfg, app)
	if err != nil {
		return err
	}
	chatSvc.SetMedia(media, cfg.Media.MaxBytes)
	hub := realtime.NewHub(bus, chatSvc, log)
	orderSvc.SetPublisher(hub)

	notifier, err := newNotifier(ctx, app, log)
	if err != nil {
		return err
	}
	dispatcher := matching.NewDispatcher(locationSvc, driverStore, matching.NewStore(redisClient), notifier, cfg.Matching, log)
	dispatcher.SetInbox(inboxSvc)
	orderSvc.SetDispatcher(dispatcher)
	matchingSvc := matching.NewService(orderStore, declineStore, driverStore, locationSvc)

	routeSvc, err := maps.NewRouteService(cfg.Maps.GoogleAPIKey, cfg.Maps.FallbackSpeedKmh)
	if err != nil {
		return err
	}
	pricingSvc := pricing.NewService(routeSvc)

	var provider payment.Provider = payment.Disabled{}
	if cfg.Stripe.SecretKey != "" {
		provider = payment.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.PublishableKey, cfg.Stripe.Currency)
	} else {
		log.Warning("stripe not configured; card payments and top-ups are disabled")
	}
	walletSvc := wallet.NewService(wallet.NewStore(dbPool), userStore, provider, log)

	identity := middleware.NewIdentity(jwtAuth, driverStore)

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(httptransport.Deps{
		Auth:      identity,
		Users:     userSvc,
		Orders:    orderSvc,
		Jobs:      matchingSvc,
		Drivers:   driverSvc,
		Locations: locationSvc,
		Chats:     chatSvc,
		Wallet:    walletSvc,
		Pricing:   pricingSvc,
		Settings:  settingsStore,
		Pets:      petSvc,
		Inbox:     inboxSvc,
		Realtime:  realtime.NewHandler(hub, identity, orderSvc, locationSvc, log),
		MediaDir:  mediaDir,
	}, log)

	// A hub that stops fanning out takes the server down with it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	hubErr := make(chan error, 1)
	go func() {
		err := hub.Run(ctx)
		if err != nil {
			log.Error("realtime hub stopped", logger.Error(err))
			cancel()
		}
		hubErr <- err
	}()

	server := httptransport.NewServer(cfg.HTTP.Addr, router, log)
	err = server.Run(ctx)
	cancel()
	hub.Shutdown()
	if herr := <-hubErr; herr != nil {
		return herr
	}
	return err
}

func newBus(cfg config.Config, rdb *redis.Client) (realtime.Bus, error) {
	switch cfg.Bus.Driver {
	case "amqp":
		return realtime.NewAMQPBus(cfg.Bus.AMQPURL)
	case "memory":
		return realtime.NewMemoryBus(), nil
	case "redis", "":
		return realtime.NewRedisBus(rdb), nil
	}
	return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
}

// newFirebaseApp returns nil when Firebase is not configured.
func newFirebaseApp(ctx context.Context, cfg config.Config, log logger.ILogger) (*firebase.App, error) {
	if cfg.Firebase.ProjectID == "" {
		log.Warning("firebase not configured; new-order pushes are logged only")
		return nil, nil
	}
	return infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.StorageBucket, cfg.Firebase.CredentialsFile)
}

func newNotifier(ctx context.Context, app *firebase.App, log logger.ILogger) (notify.Notifier, error) {
	if app == nil {
		return notify.NewNop(log), nil
	}
	client, err := infra.NewFirebaseMessaging(ctx, app)
	if err != nil {
		return nil, err
	}
	return notify.NewFCM(client, log), nil
}

// newMediaStore picks Firebase Storage when a bucket is configured and a local
// directory otherwise. The returned dir is non-empty only for the local store.
func newMediaStore(ctx context.Context, cfg config.Config, app *firebase.App) (chat.MediaStore, string, error) {
	if app != nil && cfg.Firebase.StorageBucket != "" {
		b, err := storage.NewFirebaseBucket(ctx, app, cfg.Firebase.StorageBucket)
		return b, "", err
	}
	d, err := storage.NewDisk(cfg.Media.Dir, "/uploads")
	if err != nil {
		return nil, "", err
	}
	return d, d.Dir(), nil
}
