package embedding

import (
	"github.com/disintegration/imaging"

	// Register webp decoding for imaging.Open.
	_ "golang.org/x/image/webp"
)

// Channel statistics the vision tower was trained with.
var (
	channelMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	channelStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// loadPixels decodes the image at path, center-crops it to a size×size
// square and returns normalized pixels in CHW order.
func loadPixels(path string, size int) ([]float32, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	prepared := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	pixels := make([]float32, 3*size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// NRGBA pixels from imaging are 8 bits per channel.
			c := prepared.NRGBAAt(x, y)
			for ch, v := range [3]uint8{c.R, c.G, c.B} {
				pixels[ch*size*size+y*size+x] =
					(float32(v)/255 - channelMean[ch]) / channelStd[ch]
			}
		}
	}
	return pixels, nil
}
