package object

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// defaultEncoderLevel is used until a Store's compression level is set
// explicitly. It matches zstd's own default speed/ratio balance;
// objects are written once and read often, so paying for a much
// higher level buys little.
const defaultEncoderLevel = zstd.SpeedDefault

// levelFromConfig maps the repository's storage.compression_level
// setting (the familiar 1-22 zstd CLI scale) onto klauspost/zstd's
// four encoder speed tiers, following the same rough equivalence the
// zstd CLI itself documents between its numeric levels and its
// fast/default/high/max compression modes.
func levelFromConfig(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return defaultEncoderLevel
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

var (
	encodersMu sync.Mutex
	encoders   = make(map[zstd.EncoderLevel]*zstd.Encoder)

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

// encoderFor returns the shared encoder for a given speed tier,
// building and caching it on first use. Every Store at the same
// configured level shares one encoder, the same way sharedDecoder is
// shared across all stores regardless of level.
func encoderFor(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	if enc, ok := encoders[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	encoders[level] = enc
	return enc, nil
}

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	return decoder, decoderErr
}

// compressZstd compresses data for at-rest storage at the given
// encoder level, using the klauspost/compress/zstd encoder/decoder
// pair for on-disk compression of envelope bytes.
func compressZstd(data []byte, level zstd.EncoderLevel) ([]byte, error) {
	enc, err := encoderFor(level)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return enc.EncodeAll(data, nil), nil
}

// decompressZstd reverses compressZstd. Decoding needs no level: the
// frame header carries everything the decoder needs to know.
func decompressZstd(data []byte) ([]byte, error) {
	dec, err := sharedDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
