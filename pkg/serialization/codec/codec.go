package codec

// Codec converts entity values to and from their stored representation.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// BytesCodec stores raw byte slices unchanged.
type BytesCodec struct{}

func (BytesCodec) Marshal(v []byte) ([]byte, error) {
	return v, nil
}

func (BytesCodec) Unmarshal(data []byte) ([]byte, error) {
	return data, nil
}
