package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// Comparison defaults tuned for the gateway login screens: small rendering
// differences (font hinting, cursor position) must not fail verification.
const (
	DefaultThreshold      = 0.1
	DefaultMaxDiffPercent = 5.0
)

// Result summarizes a pixel comparison of two equally sized images.
type Result struct {
	MeanDiff    float64 `json:"mean_diff"`
	MaxDiff     uint8   `json:"max_diff"`
	DiffPercent float64 `json:"diff_percent"`
}

// Match reports whether the difference falls inside the given tolerances.
// threshold is a fraction of the full 0..255 range for the mean difference;
// maxDiffPercent bounds the share of pixels that differ at all.
func (r Result) Match(threshold, maxDiffPercent float64) bool {
	return r.MeanDiff < 255*threshold && r.DiffPercent <= maxDiffPercent
}

// Compare loads two PNG files and measures their per-pixel grayscale
// difference. The images must have identical dimensions.
func Compare(pathA, pathB string) (Result, error) {
	a, err := loadGray(pathA)
	if err != nil {
		return Result{}, err
	}
	b, err := loadGray(pathB)
	if err != nil {
		return Result{}, err
	}

	if a.Bounds().Dx() != b.Bounds().Dx() || a.Bounds().Dy() != b.Bounds().Dy() {
		return Result{}, fmt.Errorf("image size mismatch: %dx%d vs %dx%d",
			a.Bounds().Dx(), a.Bounds().Dy(), b.Bounds().Dx(), b.Bounds().Dy())
	}

	var (
		sum        uint64
		max        uint8
		differs    int
		total      = a.Bounds().Dx() * a.Bounds().Dy()
		aMin, bMin = a.Bounds().Min, b.Bounds().Min
	)
	for y := 0; y < a.Bounds().Dy(); y++ {
		for x := 0; x < a.Bounds().Dx(); x++ {
			pa := a.GrayAt(aMin.X+x, aMin.Y+y).Y
			pb := b.GrayAt(bMin.X+x, bMin.Y+y).Y
			d := pa - pb
			if pb > pa {
				d = pb - pa
			}
			sum += uint64(d)
			if d > max {
				max = d
			}
			if d != 0 {
				differs++
			}
		}
	}

	return Result{
		MeanDiff:    float64(sum) / float64(total),
		MaxDiff:     max,
		DiffPercent: float64(differs) / float64(total) * 100,
	}, nil
}

func loadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	gray := image.NewGray(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray, nil
}
