package main

import (
	"github.com/spf13/cobra"

	"github.com/vecinal/certdesk/modules/certificates/presentation/controllers/dtos"
	"github.com/vecinal/certdesk/modules/certificates/services"
)

func newDocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage generated certificate documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate FOLIO",
		Short: "Render the certificate for an approved folio again, overwriting the stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(rt *cliApp) error {
				documents := rt.app.Service(services.DocumentService{}).(*services.DocumentService)
				info, err := documents.Regenerate(rt.ctx(cmd.Context()), args[0])
				if err != nil {
					return err
				}
				return writeJSON(dtos.DocumentResponse{Folio: args[0], DocumentURL: info.URL, Size: info.Size})
			})
		},
	})
	return cmd
}
