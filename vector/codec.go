package vector

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// quantScale fixes the stored precision at 4 decimal digits.
const quantScale = 10000

// Shared codec instances. EncodeAll/DecodeAll on these are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
}

// Quantize rounds every component of v to 4 decimal digits.
func Quantize(v []float32) []float32 {
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(math.Round(float64(val)*quantScale) / quantScale)
	}
	return out
}

// CompressAndEncode quantizes v to 4 decimal digits, compresses it, and
// returns a base64 string suitable for an embedding row. Quantization keeps
// the stored form compact; full precision is not needed for cosine ranking.
func CompressAndEncode(v []float32) string {
	scaled := make([]int32, len(v))
	for i, val := range v {
		scaled[i] = int32(math.Round(float64(val) * quantScale))
	}

	raw, err := json.Marshal(scaled)
	if err != nil {
		// A slice of int32 cannot fail to marshal.
		panic(err)
	}

	compressed := zstdEncoder.EncodeAll(raw, nil)
	return base64.StdEncoding.EncodeToString(compressed)
}

// DecodeAndDecompress reverses CompressAndEncode. The recovered vector
// matches the original to 4-decimal precision.
func DecodeAndDecompress(encoded string) ([]float32, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}

	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress embedding: %w", err)
	}

	var scaled []int32
	if err := json.Unmarshal(raw, &scaled); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}

	out := make([]float32, len(scaled))
	for i, val := range scaled {
		out[i] = float32(val) / quantScale
	}
	return out, nil
}
