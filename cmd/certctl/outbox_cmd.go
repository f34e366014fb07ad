package main

import (
	"github.com/spf13/cobra"

	"github.com/vecinal/certdesk/internal/server"
	"github.com/vecinal/certdesk/pkg/outbox"
)

type drainResult struct {
	Table      string `json:"table"`
	Dispatched int    `json:"dispatched"`
}

type cleanResult struct {
	Table     string `json:"table"`
	Published int64  `json:"published_removed"`
	Dead      int64  `json:"dead_removed"`
}

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Operate on the transactional outbox",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Dispatch every claimable outbox message once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(rt *cliApp) error {
				logger := rt.conf.Logger().WithField("component", "outbox")
				relays, err := server.NewRelays(rt.conf, rt.pool, rt.app.EventPublisher(), logger)
				if err != nil {
					return err
				}
				tables, err := outbox.ParseIdentifierList(rt.conf.Outbox.RelayTables)
				if err != nil {
					return err
				}
				results := make([]drainResult, 0, len(relays))
				for i, relay := range relays {
					n, err := relay.Drain(rt.ctx(cmd.Context()))
					if err != nil {
						return err
					}
					results = append(results, drainResult{Table: outbox.TableLabel(tables[i]), Dispatched: n})
				}
				return writeJSON(results)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Run one retention pass over the outbox tables and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(rt *cliApp) error {
				logger := rt.conf.Logger().WithField("component", "outbox")
				cleaners, err := server.NewCleaners(rt.conf, rt.pool, logger)
				if err != nil {
					return err
				}
				tables, err := server.CleanerTables(rt.conf)
				if err != nil {
					return err
				}
				results := make([]cleanResult, 0, len(cleaners))
				for i, cleaner := range cleaners {
					res, err := cleaner.CleanOnce(cmd.Context())
					if err != nil {
						return err
					}
					results = append(results, cleanResult{
						Table:     outbox.TableLabel(tables[i]),
						Published: res.Published,
						Dead:      res.Dead,
					})
				}
				return writeJSON(results)
			})
		},
	})
	return cmd
}
