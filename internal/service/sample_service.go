package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/locvowork/sheetstream/internal/logger"
	"github.com/locvowork/sheetstream/pkg/excelstream"
)

// SamplePreset sizes a generated sample workbook.
type SamplePreset string

const (
	PresetSmall  SamplePreset = "small"
	PresetMedium SamplePreset = "medium"
	PresetLarge  SamplePreset = "large"
	PresetXLarge SamplePreset = "xlarge"
)

var (
	brands       = []string{"Apple", "Samsung", "Sony", "LG", "Panasonic", "Philips", "Dell", "HP", "Lenovo", "ASUS"}
	countries    = []string{"USA", "China", "Vietnam", "Japan", "South Korea", "Germany", "Taiwan", "Thailand", "Malaysia", "Indonesia"}
	places       = []string{"New York", "Shanghai", "Hanoi", "Tokyo", "Seoul", "Berlin", "Taipei", "Bangkok", "Kuala Lumpur", "Jakarta"}
	featureNames = []string{"High Performance", "Energy Efficient", "Noise Reduction", "Smart Control", "Eco Friendly", "AI Powered", "Cloud Connected", "IoT Enabled", "Wireless", "USB-C"}
)

var sampleTitles = []interface{}{"Brand", "Product", "Country", "Place", "Year", "Feature", "Sub No.", "Released", "Price"}

// PresetConfig returns the number of brands, products per brand and maximum
// features per product country of a preset.
func PresetConfig(preset SamplePreset) (numBrands, numProducts, numFeatures int, err error) {
	switch preset {
	case PresetSmall:
		return 2, 10, 5, nil
	case PresetMedium:
		return 5, 50, 10, nil
	case PresetLarge:
		return 10, 100, 15, nil
	case PresetXLarge:
		return 10, 500, 20, nil
	default:
		return 0, 0, 0, fmt.Errorf("unknown preset %q", preset)
	}
}

// SampleService writes generated product feature rows. One producer per
// brand appends concurrently into the same writer.
type SampleService struct {
	settings ExportSettings
	seed     int64
}

func NewSampleService(settings ExportSettings, seed int64) *SampleService {
	return &SampleService{settings: settings, seed: seed}
}

// Generate builds a sample archive for preset.
func (s *SampleService) Generate(ctx context.Context, preset SamplePreset, capacity int) (*ExportResult, error) {
	numBrands, numProducts, numFeatures, err := PresetConfig(preset)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithLogger(ctx, map[string]interface{}{"preset": string(preset)})

	w := s.settings.newWriter("Products", capacity)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	if err := w.AppendTitles(excelstream.NewTitleRow(sampleTitles...)); err != nil {
		w.Cancel()
		return nil, err
	}

	var (
		wg    sync.WaitGroup
		total atomic.Int64
		errMu sync.Mutex
		first error
	)
	for b := 0; b < numBrands; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(s.seed + int64(b)))
			n, err := produceBrand(ctx, w, rng, brands[b], numProducts, numFeatures)
			total.Add(int64(n))
			if err != nil {
				errMu.Lock()
				if first == nil {
					first = err
				}
				errMu.Unlock()
			}
		}(b)
	}
	wg.Wait()

	if first != nil {
		w.Cancel()
		return nil, first
	}

	zipPath, err := w.BuildAsZip(fmt.Sprintf("sample-%s", preset))
	if err != nil {
		w.Cancel()
		return nil, err
	}
	logger.InfoLog(ctx, "sample %s generated: %d rows", preset, total.Load())
	return &ExportResult{Path: zipPath, Rows: int(total.Load()), release: w.Cancel}, nil
}

func produceBrand(ctx context.Context, w *excelstream.Writer, rng *rand.Rand, brand string, numProducts, numFeatures int) (int, error) {
	count := 0
	for p := 1; p <= numProducts; p++ {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		for _, country := range randomSelect(rng, countries, rng.Intn(4)+2) {
			n := rng.Intn(numFeatures) + 1
			for i := 1; i <= n; i++ {
				released := time.Date(2020+rng.Intn(5), time.Month(rng.Intn(12)+1), rng.Intn(28)+1, 0, 0, 0, 0, time.UTC)
				row := excelstream.NewRow(
					brand,
					p,
					country,
					places[rng.Intn(len(places))],
					released.Year(),
					featureNames[rng.Intn(len(featureNames))]+fmt.Sprintf(" v%d", i),
					i,
					released,
					float64(rng.Intn(200000))/100,
				).WithFormat(8, "#,##0.00")
				if err := w.Append(row); err != nil {
					return count, err
				}
				count++
			}
		}
	}
	return count, nil
}

// randomSelect picks count distinct items.
func randomSelect(rng *rand.Rand, items []string, count int) []string {
	if count > len(items) {
		count = len(items)
	}
	result := make([]string, count)
	perm := rng.Perm(len(items))
	for i := 0; i < count; i++ {
		result[i] = items[perm[i]]
	}
	return result
}
