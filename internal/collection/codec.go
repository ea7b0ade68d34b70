package collection

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"
)

// zstdDictMagic is the magic number opening a structured (entropy-table)
// Zstd dictionary, RFC 8878 §5. Dictionaries without it are raw-content
// dictionaries: their bytes are plain history, with the 32-bit id still
// self-described at [4,8) by this repository's convention.
const zstdDictMagic = 0xEC30A437

func dictIsStructured(dict []byte) bool {
	return len(dict) >= 8 && binary.LittleEndian.Uint32(dict[:4]) == zstdDictMagic
}

func rawDictID(dict []byte) (uint32, error) {
	if len(dict) < 8 {
		return 0, xerrors.New("dictionary too short")
	}
	return binary.LittleEndian.Uint32(dict[4:8]), nil
}

// encodeZstd compresses raw against dict at level, producing one
// independent Zstd frame. Each WARC record is compressed as its own frame
// so that a streaming decoder positioned at a segment offset can decode
// exactly one record without needing frame boundaries to coincide with
// segment boundaries.
func encodeZstd(raw []byte, dict []byte, level zstd.EncoderLevel) ([]byte, error) {
	var buf bytes.Buffer
	opts := []zstd.EOption{zstd.WithEncoderLevel(level)}
	if len(dict) > 0 {
		if dictIsStructured(dict) {
			opts = append(opts, zstd.WithEncoderDict(dict))
		} else {
			id, err := rawDictID(dict)
			if err != nil {
				return nil, err
			}
			opts = append(opts, zstd.WithEncoderDictRaw(id, dict))
		}
	}
	enc, err := zstd.NewWriter(&buf, opts...)
	if err != nil {
		return nil, xerrors.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, xerrors.Errorf("zstd-encoding record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, xerrors.Errorf("closing zstd encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// zstdStreamDecoder wraps r (positioned at the start of exactly one Zstd
// frame) in a streaming decoder preloaded with dict.
func zstdStreamDecoder(r io.Reader, dict []byte) (*zstd.Decoder, error) {
	opts := []zstd.DOption{}
	if len(dict) > 0 {
		if dictIsStructured(dict) {
			opts = append(opts, zstd.WithDecoderDicts(dict))
		} else {
			id, err := rawDictID(dict)
			if err != nil {
				return nil, err
			}
			opts = append(opts, zstd.WithDecoderDictRaw(id, dict))
		}
	}
	dec, err := zstd.NewReader(r, opts...)
	if err != nil {
		return nil, xerrors.Errorf("creating zstd decoder: %w", err)
	}
	return dec, nil
}

// levelFromManifest maps a manifest's stored integer compression level to a
// zstd.EncoderLevel, defaulting to the library's default level when unset.
func levelFromManifest(level int) zstd.EncoderLevel {
	if level <= 0 {
		return zstd.SpeedDefault
	}
	return zstd.EncoderLevelFromZstd(level)
}
