package storage

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
)

// encodeDataSetting produces the msgpack+zstd blob stored in the
// data_setting column.
func encodeDataSetting(ds *flightplan.DataSetting) ([]byte, error) {
	if ds == nil {
		return nil, nil
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.WithMessage(err, "zstd writer")
	}
	if err := msgpack.NewEncoder(zw).Encode(ds); err != nil {
		zw.Close()
		return nil, errors.WithMessage(err, "encode data setting")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.WithMessage(err, "close zstd writer")
	}
	return buf.Bytes(), nil
}

func decodeDataSetting(b []byte) (*flightplan.DataSetting, error) {
	if len(b) == 0 {
		return nil, nil
	}

	zr, err := zstd.NewReader(bytes.NewReader(b), zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, errors.WithMessage(err, "zstd reader")
	}
	defer zr.Close()

	var ds flightplan.DataSetting
	if err := msgpack.NewDecoder(zr).Decode(&ds); err != nil {
		return nil, errors.WithMessage(err, "decode data setting")
	}
	return &ds, nil
}
