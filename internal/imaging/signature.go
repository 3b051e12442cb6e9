package imaging

import (
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

// hashSize is the side length of the grayscale grid the difference hash is
// computed over. A 16x16 grid yields a 256-bit signature.
const hashSize = 16

// SignatureBits is the total number of bits in a Signature.
const SignatureBits = hashSize * hashSize

// Signature is a compact perceptual fingerprint of a frame, used only for
// similarity comparison between frames of the same video.
type Signature [SignatureBits / 64]uint64

// Compute derives a difference-hash signature: the image is downscaled to a
// (hashSize+1) x hashSize grayscale grid and each bit records whether a
// pixel is brighter than its right neighbor.
func Compute(img image.Image) Signature {
	small := image.NewGray(image.Rect(0, 0, hashSize+1, hashSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sig Signature
	for row := 0; row < hashSize; row++ {
		for col := 0; col < hashSize; col++ {
			if small.GrayAt(col, row).Y > small.GrayAt(col+1, row).Y {
				idx := row*hashSize + col
				sig[idx/64] |= 1 << uint(idx%64)
			}
		}
	}
	return sig
}

// Distance returns the Hamming distance between two signatures.
func Distance(a, b Signature) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// Similarity normalizes the Hamming distance between two signatures into a
// score in [0,1], where 1 means perceptually identical.
func Similarity(a, b Signature) float64 {
	return 1 - float64(Distance(a, b))/float64(SignatureBits)
}
