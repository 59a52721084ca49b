// Package storage keeps a local history of prediction runs in BoltDB.
//
// History is optional. When a data path is configured every run appends a
// PredictionRecord, and successful runs also append the mean spectrum and
// its PCA projection so the samples can be reused for retraining.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFile            = "pepper-predict.db"
	predictionsBucket = "predictions" // One record per run
)

// PredictionRecord is one stored run.
type PredictionRecord struct {
	Sample     string    `json:"sample"`
	ImagePath  string    `json:"image_path"`
	HeaderPath string    `json:"header_path"`
	Success    bool      `json:"success"`
	Moisture   float64   `json:"moisture_prediction,omitempty"`
	Piperine   float64   `json:"peperine_prediction,omitempty"`
	Error      string    `json:"error,omitempty"`
	Duration   float64   `json:"duration_seconds"`
	Ts         time.Time `json:"ts"`
}

// Store provides persistent storage for prediction history using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the history database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SampleName derives the record key prefix from an image path:
// "/data/lot7.bin" becomes "lot7".
func SampleName(imagePath string) string {
	base := filepath.Base(imagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func recordKey(sample string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%d", sample, ts.UnixNano()))
}

// StorePrediction appends a run under "sample_timestamp".
func (s *Store) StorePrediction(rec PredictionRecord) error {
	if rec.Sample == "" {
		rec.Sample = SampleName(rec.ImagePath)
	}
	if rec.Ts.IsZero() {
		rec.Ts = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		return b.Put(recordKey(rec.Sample, rec.Ts), data)
	})
}

// getRecordsInRange scans one sample's keys between start and end
// inclusive. Malformed values are skipped.
func (s *Store) getRecordsInRange(bucketName, sample string, start, end time.Time, unmarshalFunc func([]byte) (interface{}, error)) ([]interface{}, error) {
	var records []interface{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		prefix := []byte(sample + "_")
		startKey := recordKey(sample, start)
		endKey := recordKey(sample, end)

		for k, v := c.Seek(startKey); k != nil && compareKeys(k, endKey) <= 0; k, v = c.Next() {
			if !hasPrefix(k, prefix) {
				continue
			}

			record, err := unmarshalFunc(v)
			if err != nil {
				continue
			}
			records = append(records, record)
		}

		return nil
	})

	return records, err
}

// GetPredictions returns a sample's runs between start and end, oldest
// first.
func (s *Store) GetPredictions(sample string, start, end time.Time) ([]PredictionRecord, error) {
	records, err := s.getRecordsInRange(predictionsBucket, sample, start, end, func(data []byte) (interface{}, error) {
		var rec PredictionRecord
		err := json.Unmarshal(data, &rec)
		return rec, err
	})
	if err != nil {
		return nil, err
	}

	out := make([]PredictionRecord, len(records))
	for i, record := range records {
		out[i] = record.(PredictionRecord)
	}
	return out, nil
}

// CountPredictions returns the number of stored runs across all samples.
func (s *Store) CountPredictions() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func hasPrefix(data, prefix []byte) bool {
	return bytes.HasPrefix(data, prefix)
}

func compareKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}
