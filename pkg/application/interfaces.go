package application

import (
	"context"
	"io/fs"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vecinal/certdesk/pkg/eventbus"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Name() string
	Register(app Application) error
}

// Application is the composition root shared by modules, servers and CLIs.
type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBusWithError
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Migrations() MigrationManager
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...interface{})
	RegisterMigrations(name string, fsys fs.FS)
	RegisterWorkers(workers ...Worker)
	Workers() []Worker
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
}

// Worker is a long-running background loop started by the server.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}
