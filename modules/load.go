package modules

import (
	"github.com/vecinal/certdesk/modules/certificates"
	"github.com/vecinal/certdesk/pkg/application"
)

// BuiltInModules returns the modules every entrypoint loads.
func BuiltInModules(certs *certificates.ModuleOptions) []application.Module {
	return []application.Module{
		certificates.NewModule(certs),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.LoadModules(app, externalModules...)
}
