package palette

import (
	"fmt"
	"image"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// ExtractMethod selects how Extract finds the main colors of an image.
type ExtractMethod string

const (
	ExtractDominant ExtractMethod = "dominant"
	ExtractKMeans   ExtractMethod = "kmeans"
)

// maxSamples caps the pixels fed to k-means.
const maxSamples = 20000

// Extract returns up to n colors that suggest a colorway for img, lightest
// first so the result can be used directly as ground followed by inks.
func Extract(img image.Image, n int, method ExtractMethod) ([]RGB, error) {
	if n <= 0 {
		return nil, fmt.Errorf("color count must be positive, got %d", n)
	}

	var found []colorful.Color
	switch method {
	case ExtractDominant, "":
		for _, c := range dominantcolor.FindN(img, n) {
			col, _ := colorful.MakeColor(c)
			found = append(found, col)
		}
	case ExtractKMeans:
		var err error
		if found, err = kmeansColors(img, n); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown extract method %q (dominant, kmeans)", method)
	}

	slices.SortStableFunc(found, func(a, b colorful.Color) int {
		la, _, _ := a.Lab()
		lb, _, _ := b.Lab()
		switch {
		case la > lb:
			return -1
		case la < lb:
			return 1
		}
		return 0
	})

	out := make([]RGB, len(found))
	for i, c := range found {
		r, g, b := c.Clamped().RGB255()
		out[i] = RGB{R: r, G: g, B: b}
	}
	return out, nil
}

func kmeansColors(img image.Image, n int) ([]colorful.Color, error) {
	bounds := img.Bounds()
	step := 1
	for (bounds.Dx()/step)*(bounds.Dy()/step) > maxSamples {
		step++
	}

	var dataset clusters.Observations
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r) / 65535.0,
				float64(g) / 65535.0,
				float64(b) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil, fmt.Errorf("image has no opaque pixels")
	}

	k := min(n, len(dataset))
	cc, err := kmeans.New().Partition(dataset, k)
	if err != nil {
		return nil, fmt.Errorf("kmeans: %w", err)
	}

	// most populated clusters first
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	out := make([]colorful.Color, 0, len(cc))
	for _, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		out = append(out, colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]})
	}
	return out, nil
}
