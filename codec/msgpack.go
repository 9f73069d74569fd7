package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values with vmihailenco/msgpack/v5, the same encoding
// the write-behind queue envelope uses. Compact and fast; prefer it over
// JSON for high-volume caches. The zero value is ready to use.
//
// Field names follow `msgpack:"..."` struct tags, which differ from JSON
// tags; set both when a value crosses codecs.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
