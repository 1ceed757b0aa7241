package recognition

import "math"

// DefaultAlphabet is the character table of the handwriting model. Order
// matters: index i of every output chunk scores DefaultAlphabet[i].
const DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DecodeOutput turns a flat per-position score vector into text. The vector
// is split into chunks of len(alphabet) scores, one per output position, and
// each chunk emits the alphabet entry at its highest score. Chunks with no
// usable maximum are skipped.
func DecodeOutput(output []float32, alphabet string) string {
	table := []rune(alphabet)
	if len(table) == 0 {
		return ""
	}

	decoded := make([]rune, 0, len(output)/len(table)+1)
	for start := 0; start < len(output); start += len(table) {
		end := start + len(table)
		if end > len(output) {
			end = len(output)
		}

		idx := argmax(output[start:end])
		if idx < 0 || idx >= len(table) {
			continue
		}
		decoded = append(decoded, table[idx])
	}

	return string(decoded)
}

// argmax returns the first index of the maximum value, or -1 when the chunk
// is empty or contains NaN.
func argmax(chunk []float32) int {
	if len(chunk) == 0 {
		return -1
	}

	best := 0
	for i, v := range chunk {
		if math.IsNaN(float64(v)) {
			return -1
		}
		if v > chunk[best] {
			best = i
		}
	}
	return best
}
