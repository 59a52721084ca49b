package main

import (
	"flag"
	"fmt"
	"os"

	"pepper-predict/internal/common"
	"pepper-predict/internal/envi"
	"pepper-predict/internal/hsi"
	"pepper-predict/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func main() {
	var (
		imgPath    = flag.String("img", "", "Image data file")
		hdrPath    = flag.String("hdr", "", "ENVI header file")
		kmeansPath = flag.String("kmeans", "", "Optional k-means model, prints mask coverage")
		every      = flag.Int("every", 10, "Print statistics for every n-th band")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *imgPath == "" || *hdrPath == "" {
		log.Fatal().Msg("Both -img and -hdr are required")
	}
	if *every <= 0 {
		*every = 1
	}

	cube, h, err := envi.Open(*imgPath, *hdrPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cube")
	}

	fmt.Printf("Cube: %s\n", *imgPath)
	fmt.Printf("  lines=%d samples=%d bands=%d\n", h.Lines, h.Samples, h.Bands)
	fmt.Printf("  data type=%d interleave=%s byte order=%d offset=%d\n", h.DataType, h.Interleave, h.ByteOrder, h.HeaderOffset)
	if h.ScaleFactor != 0 {
		fmt.Printf("  reflectance scale factor=%g\n", h.ScaleFactor)
	}
	if len(h.Wavelengths) > 0 {
		fmt.Printf("  wavelengths %g .. %g\n", h.Wavelengths[0], h.Wavelengths[len(h.Wavelengths)-1])
	}

	fmt.Println("\nBand statistics:")
	fmt.Printf("  %5s %10s %10s %10s %10s\n", "band", "min", "max", "mean", "std")
	for b := 0; b < cube.Bands; b += *every {
		printBand(cube, b)
	}
	if cube.Bands > common.MaskBand && common.MaskBand%*every != 0 {
		printBand(cube, common.MaskBand)
	}

	if *kmeansPath == "" {
		return
	}

	km, err := ml.LoadKMeans(*kmeansPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load k-means model")
	}
	mask, err := hsi.ForegroundMask(cube, km, common.MaskBand, common.ForegroundCluster)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build mask")
	}
	fg := mask.Count()
	fmt.Printf("\nMask (band %d, cluster %d): %d of %d pixels (%.1f%%)\n",
		common.MaskBand, common.ForegroundCluster, fg, cube.Pixels(), 100*float64(fg)/float64(cube.Pixels()))
}

func printBand(cube *hsi.Cube, b int) {
	values, err := cube.Band(b)
	if err != nil {
		log.Error().Err(err).Int("band", b).Msg("Failed to read band")
		return
	}
	mean, std := stat.MeanStdDev(values, nil)
	fmt.Printf("  %5d %10.4f %10.4f %10.4f %10.4f\n", b, floats.Min(values), floats.Max(values), mean, std)
}
