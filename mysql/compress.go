package mysql

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pingcap/errors"
)

// mariadbCompressionAlgorithmZlib is the only compression algorithm
// MariaDB currently packs into QUERY_COMPRESSED_EVENT / COMPRESSED
// binlog bodies.
const mariadbCompressionAlgorithmZlib = 0

// DecompressMariadbData decompresses the body of a MariaDB
// QUERY_COMPRESSED_EVENT (or other COMPRESSED-flagged event). The
// payload is a 1-byte header whose low 3 bits select the algorithm,
// then the uncompressed length as a length-encoded integer, followed
// by a zlib stream.
func DecompressMariadbData(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Annotate(ErrCorruptPayload, "empty compressed payload")
	}

	header := data[0]
	algorithm := header & 0x07
	if algorithm != mariadbCompressionAlgorithmZlib {
		return nil, errors.Errorf("unsupported MariaDB compression algorithm %d", algorithm)
	}

	uncompressedLen, _, n := LengthEncodedInt(data[1:])
	if n == 0 {
		return nil, errors.Annotate(ErrCorruptPayload, "truncated compressed-length prefix")
	}

	r, err := zlib.NewReader(bytes.NewReader(data[1+n:]))
	if err != nil {
		return nil, errors.Annotate(err, "opening zlib stream")
	}
	defer r.Close()

	out := make([]byte, 0, uncompressedLen)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.Annotate(err, "inflating compressed event body")
	}
	return buf.Bytes(), nil
}
