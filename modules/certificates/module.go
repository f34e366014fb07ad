package certificates

import (
	"embed"
	"io/fs"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/modules/certificates/handlers"
	"github.com/vecinal/certdesk/modules/certificates/infrastructure/documents"
	"github.com/vecinal/certdesk/modules/certificates/infrastructure/persistence"
	"github.com/vecinal/certdesk/modules/certificates/presentation/controllers"
	"github.com/vecinal/certdesk/modules/certificates/services"
	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/configuration"
	"github.com/vecinal/certdesk/pkg/constants"
	"github.com/vecinal/certdesk/pkg/outbox"
	"github.com/vecinal/certdesk/pkg/serrors"
	"github.com/vecinal/certdesk/pkg/storage"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

// ModuleOptions carries the infrastructure chosen by the entrypoint.
// Registry and Cache are optional and must be untyped nil when absent.
type ModuleOptions struct {
	Config   configuration.CertificateOptions
	Store    storage.Store
	Registry services.MemberRegistry
	Cache    services.VerifyCache
	Logger   *logrus.Logger
	Location *time.Location

	RequestIDHeader string
	MaxUploadSize   int64
	MaxUploadMemory int64
}

func NewModule(opts *ModuleOptions) application.Module {
	return &Module{opts: opts}
}

type Module struct {
	opts *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	schema, err := fs.Sub(migrationFiles, "infrastructure/persistence/schema")
	if err != nil {
		return err
	}
	app.RegisterMigrations(m.Name(), schema)

	table, err := outbox.ParseIdentifier(m.opts.Config.OutboxTable)
	if err != nil {
		return err
	}
	layout := documents.DefaultLayout()
	if path := m.opts.Config.LayoutPath; path != "" {
		if layout, err = documents.LoadLayout(path); err != nil {
			return err
		}
	}
	translator, err := serrors.NewTranslator(constants.Validate)
	if err != nil {
		return err
	}

	generator := documents.NewGenerator(documents.Options{
		TemplatePath:      m.opts.Config.TemplatePath,
		Layout:            layout,
		ValidationBaseURL: m.opts.Config.ValidationBaseURL,
		OrganizationName:  m.opts.Config.OrganizationName,
		SignerName:        m.opts.Config.SignerName,
		SignerTitle:       m.opts.Config.SignerTitle,
		Location:          m.opts.Location,
	})

	ledger := persistence.NewHistoryRepository()
	deps := services.Deps{
		Requests: persistence.NewRequestRepository(),
		Ledger:   ledger,
		Outbox:   persistence.NewOutboxWriter(outbox.NewPublisher(), table),
		Bus:      app.EventPublisher(),
	}

	documentService := services.NewDocumentService(ledger, generator, m.opts.Store)
	requestService := services.NewRequestService(deps, translator, m.opts.Registry, documentService)
	stateMachine := services.NewStateMachine(deps, documentService, m.opts.Config.StrictTransitions)
	historyService := services.NewHistoryService(deps)
	proofService := services.NewProofService(requestService, historyService, m.opts.Store, m.opts.Config.MaxProofSize)
	verificationService := services.NewVerificationService(ledger, m.opts.Cache)
	exportService := services.NewExportService(ledger)

	app.RegisterServices(
		documentService,
		requestService,
		stateMachine,
		historyService,
		proofService,
		verificationService,
		exportService,
	)

	app.RegisterControllers(
		controllers.NewCertificatesAPIController(controllers.APIServices{
			Requests:  requestService,
			Machine:   stateMachine,
			History:   historyService,
			Proofs:    proofService,
			Documents: documentService,
			Export:    exportService,
		}, controllers.APIOptions{
			RequestIDHeader: m.opts.RequestIDHeader,
			MaxUploadSize:   m.opts.MaxUploadSize,
			MaxUploadMemory: m.opts.MaxUploadMemory,
		}),
		controllers.NewVerifyController(verificationService, m.opts.RequestIDHeader),
	)

	handlers.Register(app, documentService, verificationService, m.opts.Logger)
	return nil
}

func (m *Module) Name() string {
	return "certificates"
}
