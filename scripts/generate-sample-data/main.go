package main

import (
	"flag"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"pepper-predict/internal/common"
	"pepper-predict/internal/envi"
	"pepper-predict/internal/hsi"
	"pepper-predict/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Writes a synthetic ENVI cube of pepper corns on a bright tray plus a
// matching set of small JSON models, enough to exercise pepperpredict end
// to end without real artifacts.
func main() {
	var (
		outDir     = flag.String("out", "sample", "Output directory")
		lines      = flag.Int("lines", 64, "Image lines")
		samples    = flag.Int("samples", 64, "Image samples")
		bands      = flag.Int("bands", 150, "Spectral bands (must exceed 140)")
		interleave = flag.String("interleave", "bil", "Interleave: bsq, bil, bip")
		seed       = flag.Int64("seed", 1, "Noise seed")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *bands <= common.MaskBand {
		log.Fatal().Int("bands", *bands).Int("mask_band", common.MaskBand).Msg("Band count must exceed the mask band")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}

	cube, corns, err := generateCube(*lines, *samples, *bands, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate cube")
	}

	img := filepath.Join(*outDir, "sample.bin")
	hdr := filepath.Join(*outDir, "sample.hdr")
	if err := envi.Save(img, hdr, cube, envi.Interleave(*interleave)); err != nil {
		log.Fatal().Err(err).Msg("Failed to write cube")
	}

	paths, err := ml.WriteTestModels(*outDir, *bands)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write models")
	}

	log.Info().
		Str("image", img).
		Str("header", hdr).
		Int("pepper_pixels", corns).
		Str("model_dir", *outDir).
		Str("cnn_model", filepath.Base(paths.CNN)).
		Msg("Sample data written, run pepperpredict with MODEL_DIR and CNN_MODEL set")
}

// generateCube places a disk of pepper in the middle of a tray. Pepper is
// dark with a broad absorption dip, the tray is bright and flat.
func generateCube(lines, samples, bands int, rng *rand.Rand) (*hsi.Cube, int, error) {
	cube, err := hsi.NewCube(lines, samples, bands)
	if err != nil {
		return nil, 0, err
	}

	cl, cs := float64(lines)/2, float64(samples)/2
	radius := math.Min(cl, cs) * 0.6
	corns := 0

	for l := 0; l < lines; l++ {
		for s := 0; s < samples; s++ {
			pepper := math.Hypot(float64(l)-cl, float64(s)-cs) < radius
			if pepper {
				corns++
			}
			for b := 0; b < bands; b++ {
				x := float64(b) / float64(bands)
				var v float64
				if pepper {
					v = 0.08 + 0.1*x - 0.04*math.Exp(-math.Pow((x-0.7)/0.08, 2))
				} else {
					v = 0.85 + 0.05*x
				}
				v += rng.NormFloat64() * 0.005
				cube.Set(l, s, b, math.Max(v, 0))
			}
		}
	}
	return cube, corns, nil
}
