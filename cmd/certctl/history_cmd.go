package main

import (
	"github.com/spf13/cobra"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/presentation/controllers/dtos"
	"github.com/vecinal/certdesk/modules/certificates/services"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the certificate ledger",
	}

	var state, output string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print ledger records, most recently changed first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := &history.FindParams{}
			if state != "" {
				s, err := request.ParseState(state)
				if err != nil {
					return err
				}
				params.State = &s
			}
			return withRuntime(cmd, func(rt *cliApp) error {
				svc := rt.app.Service(services.HistoryService{}).(*services.HistoryService)
				records, err := svc.List(rt.ctx(cmd.Context()), params)
				if err != nil {
					return err
				}
				return writeRecords(cmd.OutOrStdout(), output, dtos.RecordsFromEntities(records))
			})
		},
	}
	list.Flags().StringVar(&state, "state", "", "Only records in this state (pending, under_review, approved, rejected)")
	list.Flags().StringVarP(&output, "output", "o", outputJSON, "Output format (json, table)")
	cmd.AddCommand(list)
	return cmd
}
