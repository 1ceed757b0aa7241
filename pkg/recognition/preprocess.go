package recognition

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	// extra decoders for scanned handwriting
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultInputSize is the square input edge of the handwriting model
const DefaultInputSize = 224

// DefaultMaxPixels bounds the decoded size of an image fed to the model
const DefaultMaxPixels = 40_000_000

// channels per pixel fed to the model (RGB, alpha dropped)
const channels = 3

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]float32, 0, DefaultInputSize*DefaultInputSize*channels)
		return &buf
	},
}

// Tensor is a dense float32 input for the learned model, laid out NHWC.
// It owns a pooled buffer and must be released once the model returns.
type Tensor struct {
	Shape []int64
	Data  []float32

	buf *[]float32
}

// Len returns the number of elements described by Shape
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// Released reports whether Release has been called
func (t *Tensor) Released() bool {
	return t.buf == nil
}

// Release hands the buffer back to the pool. Calling it twice is harmless.
func (t *Tensor) Release() {
	if t.buf == nil {
		return
	}
	*t.buf = t.Data[:0]
	bufferPool.Put(t.buf)
	t.buf = nil
	t.Data = nil
}

// Preprocess decodes an image and converts it to the model input: resized to
// size x size with nearest neighbour sampling, intensities scaled to [0,1],
// with a leading batch dimension of one. Images with more than maxPixels
// pixels are rejected from their header, before decoding; zero selects
// DefaultMaxPixels.
func Preprocess(content []byte, size, maxPixels int) (*Tensor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid model input size %d", size)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("no image content provided")
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if pixels := int64(header.Width) * int64(header.Height); pixels > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, header.Width, header.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := imaging.Resize(img, size, size, imaging.NearestNeighbor)

	buf := bufferPool.Get().(*[]float32)
	n := size * size * channels
	if cap(*buf) < n {
		*buf = make([]float32, n)
	}
	data := (*buf)[:n]

	i := 0
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+size*4]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+4]
			data[i] = float32(px[0]) / 255.0
			data[i+1] = float32(px[1]) / 255.0
			data[i+2] = float32(px[2]) / 255.0
			i += channels
		}
	}

	return &Tensor{
		Shape: []int64{1, int64(size), int64(size), channels},
		Data:  data,
		buf:   buf,
	}, nil
}
