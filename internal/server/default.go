package server

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/configuration"
	"github.com/vecinal/certdesk/pkg/constants"
	"github.com/vecinal/certdesk/pkg/httpapi"
	"github.com/vecinal/certdesk/pkg/middleware"
	"github.com/vecinal/certdesk/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.RequestIDHeader = conf.RequestIDHeader
	loggerOpts.RealIPHeader = conf.RealIPHeader

	app.RegisterMiddleware(
		middleware.WithLogger(options.Logger, loggerOpts),
		middleware.Provide(constants.AppKey, app),
		middleware.WithPool(options.Pool),
		middleware.Cors(conf.CorsOriginList()...),
	)

	return server.NewHTTPServer(
		app,
		notFound(conf.RequestIDHeader),
		methodNotAllowed(conf.RequestIDHeader),
	), nil
}

func notFound(header string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := httpapi.RequestID(w, r, header)
		_ = httpapi.WriteError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "route not found", map[string]string{
			"request_id": requestID,
			"path":       r.URL.Path,
		})
	})
}

func methodNotAllowed(header string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := httpapi.RequestID(w, r, header)
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", map[string]string{
			"request_id": requestID,
			"method":     r.Method,
		})
	})
}
