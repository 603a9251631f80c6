package filters

import (
	"github.com/pkg/errors"
)

// PNG row filter types.
const (
	pngNone    = 0
	pngSub     = 1
	pngUp      = 2
	pngAverage = 3
	pngPaeth   = 4
)

// Predictor geometry bounds. A row never exceeds maxRowBytes.
const (
	maxColors   = 32
	maxColumns  = 1 << 24
	maxRowBytes = 16 << 20
)

// geometry describes one predicted row.
type geometry struct {
	colors  int
	bpc     int
	columns int
	bpp     int // bytes per pixel, at least 1
	stride  int // bytes per row, excluding the PNG filter byte
}

// rowGeometry validates Colors, BitsPerComponent and Columns and derives
// the pixel width and row stride from them.
func rowGeometry(params Params) (geometry, error) {
	colors := params.Int("Colors", 1)
	bpc := params.Int("BitsPerComponent", 8)
	columns := params.Int("Columns", 1)
	if colors < 1 || colors > maxColors || columns < 1 || columns > maxColumns {
		return geometry{}, errors.Errorf("predictor: invalid geometry colors=%d columns=%d", colors, columns)
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return geometry{}, errors.Errorf("predictor: invalid BitsPerComponent %d", bpc)
	}
	stride := (colors*bpc*columns + 7) / 8
	if stride > maxRowBytes {
		return geometry{}, errors.Errorf("predictor: row of %d bytes exceeds %d", stride, maxRowBytes)
	}
	return geometry{
		colors:  int(colors),
		bpc:     int(bpc),
		columns: int(columns),
		bpp:     int((colors*bpc + 7) / 8),
		stride:  int(stride),
	}, nil
}

// unpredict reverses the predictor named by params, if any.
func unpredict(data []byte, params Params) ([]byte, error) {
	predictor := params.Int("Predictor", 1)
	switch {
	case predictor <= 1:
		return data, nil
	case predictor == 2:
		return unpredictTIFF(data, params)
	case predictor >= 10:
		return unpredictPNG(data, params)
	}
	return nil, errors.Errorf("predictor: unsupported value %d", predictor)
}

// unpredictTIFF undoes horizontal differencing: each sample is stored as
// the difference from the same component of the previous pixel, modulo
// 2^BitsPerComponent.
func unpredictTIFF(data []byte, params Params) ([]byte, error) {
	g, err := rowGeometry(params)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	samples := g.colors * g.columns
	mask := uint32(1)<<g.bpc - 1
	for row := 0; row < len(out); row += g.stride {
		end := row + g.stride
		if end > len(out) {
			end = len(out)
		}
		line := out[row:end]
		n := len(line) * 8 / g.bpc
		if n > samples {
			n = samples
		}
		for i := g.colors; i < n; i++ {
			v := sample(line, i, g.bpc) + sample(line, i-g.colors, g.bpc)
			setSample(line, i, g.bpc, v&mask)
		}
	}
	return out, nil
}

// sample returns the i-th big-endian sample of width bpc bits.
func sample(row []byte, i, bpc int) uint32 {
	switch bpc {
	case 8:
		return uint32(row[i])
	case 16:
		return uint32(row[2*i])<<8 | uint32(row[2*i+1])
	}
	bit := i * bpc
	shift := 8 - bpc - bit%8
	return uint32(row[bit/8]>>shift) & (1<<bpc - 1)
}

func setSample(row []byte, i, bpc int, v uint32) {
	switch bpc {
	case 8:
		row[i] = byte(v)
		return
	case 16:
		row[2*i] = byte(v >> 8)
		row[2*i+1] = byte(v)
		return
	}
	bit := i * bpc
	shift := 8 - bpc - bit%8
	mask := byte(1<<bpc-1) << shift
	row[bit/8] = row[bit/8]&^mask | byte(v)<<shift&mask
}

// unpredictPNG strips the per-row filter byte and reconstructs each row
// against the previous one.
func unpredictPNG(data []byte, params Params) ([]byte, error) {
	g, err := rowGeometry(params)
	if err != nil {
		return nil, err
	}
	bpp, stride := g.bpp, g.stride
	rowLen := stride + 1
	out := make([]byte, 0, len(data)/rowLen*stride)
	prev := make([]byte, stride)
	cur := make([]byte, stride)
	for pos := 0; pos < len(data); pos += rowLen {
		end := pos + rowLen
		if end > len(data) {
			// Truncated final row: decode what is there.
			end = len(data)
		}
		kind := data[pos]
		n := copy(cur, data[pos+1:end])
		for i := n; i < stride; i++ {
			cur[i] = 0
		}
		if err := decodePNGRow(kind, cur, prev, bpp); err != nil {
			return nil, err
		}
		out = append(out, cur[:n]...)
		prev, cur = cur, prev
	}
	return out, nil
}

func decodePNGRow(kind byte, cur, prev []byte, bpp int) error {
	switch kind {
	case pngNone:
	case pngSub:
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case pngUp:
		for i := range cur {
			cur[i] += prev[i]
		}
	case pngAverage:
		for i := range cur {
			var left int
			if i >= bpp {
				left = int(cur[i-bpp])
			}
			cur[i] += byte((left + int(prev[i])) / 2)
		}
	case pngPaeth:
		for i := range cur {
			var a, c byte
			if i >= bpp {
				a = cur[i-bpp]
				c = prev[i-bpp]
			}
			cur[i] += paeth(a, prev[i], c)
		}
	default:
		return errors.Errorf("predictor: unknown PNG row filter %d", kind)
	}
	return nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
