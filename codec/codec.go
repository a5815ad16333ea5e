// Package codec frames values for transport over the invalidation bus.
package codec

// Codec encodes/decodes values V to []byte for the wire.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
