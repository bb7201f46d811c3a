package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dbdump/internal/application"
	"dbdump/internal/database"
	"dbdump/internal/dump"
	apperrors "dbdump/internal/errors"
)

func newConnectionsCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List the configured connections and the strategy that dumps them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			logger, err := o.newLogger()
			if err != nil {
				return err
			}
			defer logger.Close()

			registry, err := cfg.BuildRegistry()
			if err != nil {
				return apperrors.NewAppError(apperrors.ErrorTypeConfiguration, "invalid connection registry", err).
					WithUserMessage(err.Error())
			}
			dispatcher, err := application.NewDispatcher(cfg, dump.Deps{Logger: logger})
			if err != nil {
				return err
			}

			printer := o.newPrinter()
			if registry.Len() == 0 {
				fmt.Fprintln(o.stdout, "No connections are configured.")
				return nil
			}

			rows := make([][]string, 0, registry.Len())
			for _, conn := range registry.All() {
				rows = append(rows, []string{
					conn.Identifier(),
					string(conn.Kind()),
					hostPort(conn),
					conn.Database(),
					application.StrategyName(dispatcher, conn),
				})
			}
			printer.Table([]string{"Connection", "Type", "Host", "Database", "Strategy"}, rows)

			if len(cfg.Connections) > 0 {
				fmt.Fprintf(o.stdout, "Default connections: %v\n", cfg.Connections)
			}
			if names := cfg.ProfileNames(); len(names) > 0 {
				fmt.Fprintf(o.stdout, "Profiles: %v\n", names)
			}
			return nil
		},
	}
}

func hostPort(conn *database.Connection) string {
	if conn.Host() == "" {
		return "-"
	}
	if conn.Port() == 0 {
		return conn.Host()
	}
	return conn.Host() + ":" + strconv.Itoa(conn.Port())
}
