package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/ingestion"
)

var syncParams = struct {
	PatientIds []string
	Days       int
	All        bool
}{}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync provider data",
	Long:  "The sync command fetches the provider data of the trailing days of the given patients, or of every patient with a connected provider account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(syncParams.PatientIds) == 0 && !syncParams.All {
			return fmt.Errorf("either --patient or --all is required")
		}
		return Run(syncPatients)
	},
}

func syncPatients(pipeline *ingestion.Pipeline, logger *zap.SugaredLogger) error {
	days := syncParams.Days
	if days == 0 {
		days = pipeline.BackfillDays()
	}

	var reports map[string]*ingestion.SyncReport
	var err error
	if syncParams.All {
		reports, err = pipeline.SyncAuthenticated(context.TODO(), days)
	} else {
		reports, err = pipeline.SyncAll(context.TODO(), syncParams.PatientIds, days)
	}
	if err != nil {
		return err
	}

	patientIds := make([]string, 0, len(reports))
	for patientId := range reports {
		patientIds = append(patientIds, patientId)
	}
	sort.Strings(patientIds)

	failed := 0
	for _, patientId := range patientIds {
		report := reports[patientId]
		status := "ok"
		if report.RequiresAuthorization() {
			status = "authorization required"
		} else if len(report.Errors) > 0 {
			status = "partial"
		}
		if status != "ok" {
			failed++
		}

		syncedThrough := "(none)"
		if report.SyncedThrough != nil {
			syncedThrough = *report.SyncedThrough
		}
		fmt.Printf("%s %s - samples %d, biomarkers %d, alerts %d, synced through %s\n",
			patientId, status, report.SamplesWritten, report.BiomarkersWritten, report.AlertsCreated, syncedThrough)
		for _, dayErr := range report.Errors {
			fmt.Printf("  %s: %s\n", dayErr.Day, dayErr.Error)
		}
		if report.AuthError != "" {
			fmt.Printf("  %s\n", report.AuthError)
		}
	}
	fmt.Printf("Synced %v patients\n", len(reports))

	if failed > 0 {
		logger.Warnw("sync incomplete", "patients", len(reports), "failed", failed)
		return fmt.Errorf("%d of %d patients didn't sync completely", failed, len(reports))
	}
	return nil
}

func init() {
	syncCmd.Flags().StringSliceVarP(&syncParams.PatientIds, "patient", "p", nil, "The id of the patient to sync, may be repeated")
	syncCmd.Flags().IntVarP(&syncParams.Days, "days", "d", 0, "The number of trailing days to sync, defaults to the configured backfill")
	syncCmd.Flags().BoolVar(&syncParams.All, "all", false, "Sync every patient with a connected provider account")

	rootCmd.AddCommand(syncCmd)
}
