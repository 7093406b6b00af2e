package pipeline

import (
	"bytes"
	"fmt"
	"image"

	// register decoders for the formats the models return
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

const validatorSize = 256

// SareeValidator checks that a generated image still resembles the original
// product photo. It computes a whole-image structural similarity score over
// grayscale thumbnails; a low score means the styler likely repainted the
// saree rather than restaging it.
type SareeValidator struct {
	Threshold float64
}

// NewSareeValidator returns a validator with the given pass threshold.
func NewSareeValidator(threshold float64) *SareeValidator {
	return &SareeValidator{Threshold: threshold}
}

// VerifyPreserved scores generated against original and reports whether the
// score clears the threshold.
func (v *SareeValidator) VerifyPreserved(originalBytes, generatedBytes []byte) (bool, float64, error) {
	orig, err := toGray(originalBytes)
	if err != nil {
		return false, 0, fmt.Errorf("decoding original image: %w", err)
	}
	gen, err := toGray(generatedBytes)
	if err != nil {
		return false, 0, fmt.Errorf("decoding generated image: %w", err)
	}
	score := ssim(orig, gen)
	return score >= v.Threshold, score, nil
}

// toGray decodes image bytes and returns a 256x256 grayscale pixel buffer.
func toGray(data []byte) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	gray := image.NewGray(image.Rect(0, 0, validatorSize, validatorSize))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	pixels := make([]float64, validatorSize*validatorSize)
	for y := 0; y < validatorSize; y++ {
		for x := 0; x < validatorSize; x++ {
			pixels[y*validatorSize+x] = float64(gray.GrayAt(x, y).Y)
		}
	}
	return pixels, nil
}

// ssim computes a single whole-image SSIM over two equal-length grayscale
// buffers, using the standard stabilizing constants for 8-bit depth.
func ssim(x, y []float64) float64 {
	const (
		c1 = 6.5025
		c2 = 58.5225
	)

	xMean := mean(x)
	yMean := mean(y)

	var xVar, yVar, covariance float64
	for i := range x {
		dx := x[i] - xMean
		dy := y[i] - yMean
		xVar += dx * dx
		yVar += dy * dy
		covariance += dx * dy
	}
	n := float64(len(x))
	xVar /= n
	yVar /= n
	covariance /= n

	numerator := (2*xMean*yMean + c1) * (2*covariance + c2)
	denominator := (xMean*xMean + yMean*yMean + c1) * (xVar + yVar + c2)
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
