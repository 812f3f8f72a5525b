package imageprocessor

import (
	"fmt"
	"image"

	"github.com/artyom/phash"
	"github.com/disintegration/imaging"
)

// thumbSize is the fixed downsample grid the perceptual hash is computed
// over. Resize robustness comes from this grid plus the Hamming tolerance
// applied downstream, not from anything at extraction time.
const thumbSize = 32

func scale(img image.Image, w, h int) image.Image {
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// PerceptualHash computes the rotation-canonicalized 64-bit DCT hash of an
// image. The grayscale thumbnail is hashed at 0°, 90°, 180° and 270° and the
// numerically smallest hash wins, so images differing only by a
// multiple-of-90° rotation converge to the same value.
func PerceptualHash(img image.Image) (uint64, error) {
	thumb := imaging.Resize(imaging.Grayscale(img), thumbSize, thumbSize, imaging.Lanczos)

	rotations := []image.Image{
		thumb,
		imaging.Rotate90(thumb),
		imaging.Rotate180(thumb),
		imaging.Rotate270(thumb),
	}

	var canonical uint64
	for i, rot := range rotations {
		h, err := phash.Get(rot, scale)
		if err != nil {
			return 0, fmt.Errorf("perceptual hash (rotation %d): %w", i*90, err)
		}
		if i == 0 || h < canonical {
			canonical = h
		}
	}
	return canonical, nil
}

// HammingDistance counts differing bits between two perceptual hashes.
func HammingDistance(a, b uint64) int {
	return phash.Distance(a, b)
}
