// cardiopredict/cmd/retrain/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/apiclient"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

var (
	spaceFlag = flag.String("space", "all", "Feature space to retrain (lifestyle, clinical, all)")
	force     = flag.Bool("force", false, "Retrain even when below the minimum sample count")
	apiURL    = flag.String("api-url", "", "Base URL of a running cardiopredict server")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	timeout   = flag.Duration("timeout", 30*time.Minute, "Overall timeout for the retrain run")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	utils.InitLogger()
	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	baseURL := *apiURL
	if baseURL == "" {
		baseURL = os.Getenv("CARDIOPREDICT_API_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	spaces, ok := resolveSpaces(*spaceFlag)
	if !ok {
		logger.WithField("space", *spaceFlag).Fatal("Unknown feature space")
	}

	logger.WithFields(logrus.Fields{
		"api_url": baseURL,
		"spaces":  spaces,
		"force":   *force,
	}).Info("Starting retrain run")

	client := apiclient.NewClient(baseURL, logger)

	healthStatus, err := client.Health()
	if err != nil {
		logger.WithError(err).Fatal("Server is not reachable")
	}
	if healthStatus.Status == "unhealthy" {
		logger.WithField("services", healthStatus.Services).Fatal("Server reports unhealthy status")
	}

	stats, err := client.TrainingStats()
	if err != nil {
		logger.WithError(err).Fatal("Failed to fetch training stats")
	}
	logger.WithFields(logrus.Fields{
		"lifestyle_ready": stats.Lifestyle.ReadyForTraining,
		"clinical_ready":  stats.Clinical.ReadyForTraining,
		"total":           stats.Total.TotalExaminations,
	}).Info("Training stats fetched")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failures := 0
	for _, space := range spaces {
		spaceStats, err := client.SpaceStats(space)
		if err != nil {
			logger.WithError(err).WithField("space", space).Error("Failed to fetch space stats")
			failures++
			continue
		}
		logger.WithFields(logrus.Fields{
			"space":   space,
			"ready":   spaceStats.ReadyForTraining,
			"pending": spaceStats.PendingDiagnosis,
			"trained": spaceStats.AlreadyTrained,
		}).Info("Space training stats")

		report, err := client.RetrainWithRetry(ctx, space, *force)
		if err != nil {
			logger.WithError(err).WithField("space", space).Error("Retrain failed")
			failures++
			continue
		}
		logReport(logger, report)
	}

	logger.WithFields(logrus.Fields{
		"spaces":   len(spaces),
		"failures": failures,
	}).Info("Retrain run completed")

	if failures > 0 {
		os.Exit(1)
	}
}

func resolveSpaces(name string) ([]string, bool) {
	if name == "all" {
		var spaces []string
		for _, space := range models.AllSpaces() {
			spaces = append(spaces, space.Name)
		}
		return spaces, true
	}
	if _, ok := models.SpaceByName(name); !ok {
		return nil, false
	}
	return []string{name}, true
}

func logReport(logger *logrus.Logger, report *models.RetrainReport) {
	if report.Skipped {
		logger.WithFields(logrus.Fields{
			"space":  report.Space,
			"reason": report.Reason,
		}).Warn("Retrain skipped")
		return
	}

	for _, result := range report.Models {
		entry := logger.WithFields(logrus.Fields{
			"space":       report.Space,
			"model":       result.ModelKey,
			"status":      result.Status,
			"cv_accuracy": result.CVAccuracy,
		})
		if result.Status == "ok" {
			entry.Info("Model retrained")
		} else {
			entry.WithField("error", result.Error).Error("Model retrain failed")
		}
	}

	logger.WithFields(logrus.Fields{
		"space":          report.Space,
		"samples":        report.Samples,
		"marked_trained": report.MarkedTrained,
	}).Info("Retrain completed")
}
