package cli

import (
	"context"
	"log"
	"os"

	"classquiz-service/internal/app"
	"classquiz-service/internal/config"
	"classquiz-service/internal/infra/file"
	"classquiz-service/internal/infra/postgres"
	"classquiz-service/internal/report"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewExportCmd writes all student records into an xlsx workbook without
// going through the HTTP API.
func NewExportCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export student records to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), *configPath, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "student_records.xlsx", "output file path")
	return cmd
}

func runExport(ctx context.Context, configPath, out string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var records app.RecordStore
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		records = postgres.NewRecordStore(pool)
	} else {
		store, err := file.OpenRecordStore(cfg.Store.Dir)
		if err != nil {
			return err
		}
		records = store
	}

	all, err := records.List(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.WriteXLSX(all, f); err != nil {
		return err
	}
	log.Printf("exported %d records to %s", len(all), out)
	return nil
}
