package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

const spectraBucket = "spectra"

// SpectrumRecord is the feature vector of a successful run.
type SpectrumRecord struct {
	Sample     string    `json:"sample"`
	Timestamp  time.Time `json:"timestamp"`
	Pixels     int       `json:"foreground_pixels"`
	Spectrum   []float64 `json:"spectrum"`
	Components []float64 `json:"components"`
}

// StoreSpectrum stores a spectrum record. The bucket is created on first
// use.
func (s *Store) StoreSpectrum(record SpectrumRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(spectraBucket))
		if err != nil {
			return fmt.Errorf("create spectra bucket: %w", err)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal spectrum record: %w", err)
		}

		return b.Put(recordKey(record.Sample, record.Timestamp), data)
	})
}

// GetSpectraInRange returns a sample's spectra between start and end.
func (s *Store) GetSpectraInRange(sample string, start, end time.Time) ([]SpectrumRecord, error) {
	records, err := s.getRecordsInRange(spectraBucket, sample, start, end, func(data []byte) (interface{}, error) {
		var rec SpectrumRecord
		err := json.Unmarshal(data, &rec)
		return rec, err
	})
	if err != nil {
		return nil, err
	}

	spectra := make([]SpectrumRecord, len(records))
	for i, record := range records {
		spectra[i] = record.(SpectrumRecord)
	}
	return spectra, nil
}

// ExportSpectraCSV writes every stored spectrum as one CSV row:
// sample, timestamp, foreground pixels, then the band means. Rows with a
// different band count than the first are skipped.
func (s *Store) ExportSpectraCSV(w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	rows := 0
	bands := -1

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(spectraBucket))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var rec SpectrumRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			if bands < 0 {
				bands = len(rec.Spectrum)
				if err := cw.Write(csvHeader(bands)); err != nil {
					return err
				}
			}
			if len(rec.Spectrum) != bands {
				return nil
			}

			row := make([]string, 0, 3+bands)
			row = append(row, rec.Sample, rec.Timestamp.UTC().Format(time.RFC3339Nano), strconv.Itoa(rec.Pixels))
			for _, v := range rec.Spectrum {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			rows++
			return cw.Write(row)
		})
	})
	if err != nil {
		return rows, fmt.Errorf("export spectra: %w", err)
	}

	cw.Flush()
	return rows, cw.Error()
}

func csvHeader(bands int) []string {
	header := []string{"sample", "timestamp", "foreground_pixels"}
	for i := 0; i < bands; i++ {
		header = append(header, "band_"+strconv.Itoa(i))
	}
	return header
}
