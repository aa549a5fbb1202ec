package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/MashSoftware/diary-api/api/authentication"
	"github.com/MashSoftware/diary-api/api/children"
	"github.com/MashSoftware/diary-api/api/events"
	. "github.com/MashSoftware/diary-api/api/shared"
	"github.com/MashSoftware/diary-api/api/users"
	"github.com/MashSoftware/diary-api/common/credentials"
	"github.com/MashSoftware/diary-api/common/generator"
	"github.com/MashSoftware/diary-api/common/log"
	"github.com/MashSoftware/diary-api/common/messaging"
	"github.com/MashSoftware/diary-api/common/store"
	"github.com/MashSoftware/diary-api/common/store/migrations"

	"github.com/facebookgo/inject"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/pkg/errors"
)

var (
	ctx             = context.Background()
	logger          = log.NewLogger("diary")
	config          *AppConfig
	db              *gorm.DB
	stringGenerator = &generator.StringGenerator{}
	publisher       interface {
		Publish(ctx context.Context, message messaging.Message) error
	}

	userService           = &users.UserService{}
	childService          = &children.ChildService{}
	eventService          = &events.EventService{}
	authenticationService = &authentication.AuthenticationService{}

	userHandlerFactory           = &users.HandlerFactory{}
	childrenHandlerFactory       = &children.HandlerFactory{}
	eventsHandlerFactory         = &events.HandlerFactory{}
	authenticationHandlerFactory = &authentication.HandlerFactory{}

	dbStore = &store.Store{}
)

func init() {
	checkErrAndExit(initAppConfiguration())
	checkErrAndExit(initPostgresConnection())
	checkErrAndExit(initPublisher())
	checkErrAndExit(initApplicationGraph())
}

func initAppConfiguration() (err error) {
	config, err = InitAppConfiguration()
	if err != nil {
		return
	}
	credentials.Cost = config.BcryptCost
	dbStore.Isolation, err = config.IsolationLevel()
	return
}

func initPostgresConnection() (err error) {
	db, err = gorm.Open("postgres", config.PostgresConnectString())
	if err != nil {
		return errors.Wrap(err, "failed to connect to postgres")
	}

	db.LogMode(config.LogSqlQueries)
	db.SetLogger(logger)
	return
}

func initPublisher() error {
	if config.NotificationsTopic == "" {
		logger.Info(ctx, "no notifications topic configured, lifecycle notifications are disabled")
		publisher = &messaging.NopPublisher{}
		return nil
	}

	client, err := messaging.New(ctx, messaging.ClientOptions{
		ProjectID:      config.GcpProjectID,
		Topic:          config.NotificationsTopic,
		CredentialPath: config.GcpServiceAccount,
	})
	if err != nil {
		return err
	}
	publisher = client
	return nil
}

func initApplicationGraph() error {
	g := inject.Graph{}
	g.Provide(
		&inject.Object{Value: config},
		&inject.Object{Value: userService},
		&inject.Object{Value: childService},
		&inject.Object{Value: eventService},
		&inject.Object{Value: authenticationService},
		&inject.Object{Value: userHandlerFactory},
		&inject.Object{Value: childrenHandlerFactory},
		&inject.Object{Value: eventsHandlerFactory},
		&inject.Object{Value: authenticationHandlerFactory},
		&inject.Object{Value: db},
		&inject.Object{Value: stringGenerator},
		&inject.Object{Value: dbStore},
		&inject.Object{Value: publisher},
		&inject.Object{Value: logger},
	)
	if err := g.Populate(); err != nil {
		return errors.Wrap(err, "failed to populate")
	}
	return nil
}

func main() {
	if config.StartupMigration {
		applySqlSchemaMigrations(ctx)
	}
	startHttpServer(ctx)
}

func applySqlSchemaMigrations(ctx context.Context) {
	logger.Info(ctx, "applying sql schema migrations")
	migrationResult := migrations.Up(migrations.ApplyOptions{
		SourceURL:   fmt.Sprintf("file://%s", config.SqlMigrationsSourceDir),
		DatabaseURL: config.PostgresURL(),
	})
	checkErrAndExit(migrationResult.Err)
	if !migrationResult.Changes {
		logger.Info(ctx, "no new migrations applied")
		return
	}
	logger.Info(ctx, "sql schema migrated", "version", migrationResult.Version)
}

func startHttpServer(ctx context.Context) {
	userOpts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(logger),
		kithttp.ServerErrorEncoder(users.EncodeError),
	}

	childrenOpts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(logger),
		kithttp.ServerErrorEncoder(children.EncodeError),
	}

	eventsOpts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(logger),
		kithttp.ServerErrorEncoder(events.EncodeError),
	}

	authenticationOpts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(logger),
		kithttp.ServerErrorEncoder(authentication.EncodeError),
	}

	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.DB().PingContext(r.Context()); err != nil {
			logger.Warn(r.Context(), "database is not reachable", "err", err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	apiRouterV1 := router.PathPrefix("/v1").Subrouter()

	apiRouterV1.Handle("/login", authenticationHandlerFactory.Login(authenticationOpts)).Methods(http.MethodPost)

	apiRouterV1.Handle("/users", userHandlerFactory.Add(userOpts)).Methods(http.MethodPost)
	apiRouterV1.Handle("/users", userHandlerFactory.List(userOpts)).Methods(http.MethodGet)
	apiRouterV1.Handle("/users/{userId}", userHandlerFactory.Get(userOpts)).Methods(http.MethodGet)
	apiRouterV1.Handle("/users/{userId}", userHandlerFactory.Update(userOpts)).Methods(http.MethodPut, http.MethodPatch)
	apiRouterV1.Handle("/users/{userId}", userHandlerFactory.Delete(userOpts)).Methods(http.MethodDelete)

	apiRouterV1.Handle("/children", childrenHandlerFactory.Add(childrenOpts)).Methods(http.MethodPost)
	apiRouterV1.Handle("/children", childrenHandlerFactory.List(childrenOpts)).Methods(http.MethodGet)
	apiRouterV1.Handle("/children/{childId}", childrenHandlerFactory.Get(childrenOpts)).Methods(http.MethodGet)
	apiRouterV1.Handle("/children/{childId}", childrenHandlerFactory.Update(childrenOpts)).Methods(http.MethodPut, http.MethodPatch)
	apiRouterV1.Handle("/children/{childId}", childrenHandlerFactory.Delete(childrenOpts)).Methods(http.MethodDelete)
	apiRouterV1.Handle("/children/{childId}/users/{userId}", childrenHandlerFactory.LinkUser(childrenOpts)).Methods(http.MethodPut)
	apiRouterV1.Handle("/children/{childId}/users/{userId}", childrenHandlerFactory.UnlinkUser(childrenOpts)).Methods(http.MethodDelete)

	apiRouterV1.Handle("/children/{childId}/events", eventsHandlerFactory.Add(eventsOpts)).Methods(http.MethodPost)
	apiRouterV1.Handle("/children/{childId}/events", eventsHandlerFactory.List(eventsOpts)).Methods(http.MethodGet)
	apiRouterV1.Handle("/children/{childId}/events/{eventId}", eventsHandlerFactory.Get(eventsOpts)).Methods(http.MethodGet)
	apiRouterV1.Handle("/children/{childId}/events/{eventId}", eventsHandlerFactory.Update(eventsOpts)).Methods(http.MethodPut, http.MethodPatch)
	apiRouterV1.Handle("/children/{childId}/events/{eventId}", eventsHandlerFactory.Delete(eventsOpts)).Methods(http.MethodDelete)

	logger.Info(ctx, "listening", "address", config.ListenAddress)
	checkErrAndExit(http.ListenAndServe(config.ListenAddress, logger.RequestLoggerMiddleware(router)))
}

func checkErrAndExit(err error) {
	if err == nil {
		return
	}
	fmt.Println(err.Error())
	os.Exit(1)
}
