package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pepper-predict/internal/cfg"
	"pepper-predict/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run lists stored predictions for the given samples as JSON lines, or
// exports every stored spectrum to CSV when -export is set.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pephistory", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dataPath   = fs.String("data", "", "History directory (defaults to DATA_PATH)")
		samples    = fs.String("samples", "", "Comma-separated sample names to list")
		startDate  = fs.String("start", "", "Start date (YYYY-MM-DD)")
		endDate    = fs.String("end", "", "End date (YYYY-MM-DD), inclusive")
		exportPath = fs.String("export", "", "Write all stored spectra to this CSV file")
		logLevel   = fs.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	if *dataPath == "" {
		c, err := cfg.Load()
		if err != nil {
			log.Error().Err(err).Msg("Failed to load config")
			return 1
		}
		*dataPath = c.DataPath
	}
	if *dataPath == "" {
		log.Error().Msg("No history directory, set -data or DATA_PATH")
		return 1
	}

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Error().Err(err).Str("data_path", *dataPath).Msg("Failed to open history store")
		return 1
	}
	defer store.Close()

	if *exportPath != "" {
		if err := exportSpectra(store, *exportPath); err != nil {
			log.Error().Err(err).Msg("Export failed")
			return 1
		}
		return 0
	}

	start, end, err := parseRange(*startDate, *endDate, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Invalid date range")
		return 1
	}

	names := parseSamples(*samples)
	if len(names) == 0 {
		log.Error().Msg("No samples given, set -samples")
		return 1
	}

	enc := json.NewEncoder(stdout)
	for _, name := range names {
		records, err := store.GetPredictions(name, start, end)
		if err != nil {
			log.Error().Err(err).Str("sample", name).Msg("Failed to read predictions")
			return 1
		}
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				log.Error().Err(err).Msg("Failed to write record")
				return 1
			}
		}
		log.Debug().Str("sample", name).Int("records", len(records)).Msg("Sample listed")
	}
	return 0
}

func exportSpectra(store *storage.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	rows, err := store.ExportSpectraCSV(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Info().Str("file", path).Int("rows", rows).Msg("Spectra exported")
	return nil
}

// parseRange defaults to the last 30 days. The end date covers its whole
// day.
func parseRange(startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	start := now.AddDate(0, 0, -30)
	end := now

	if startDate != "" {
		t, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
		}
		start = t
	}
	if endDate != "" {
		t, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
		}
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return start, end, nil
}

// parseSamples parses comma-separated sample names
func parseSamples(samples string) []string {
	var result []string
	for _, s := range strings.Split(samples, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}
