package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/ajitpratap0/squash/pkg/columnar"
	"github.com/ajitpratap0/squash/pkg/errors"
)

// Native files are a sequence of frames, one per block:
//
//	uvarint payload length | uint64 xxh3 of payload | payload
//
// The payload holds uvarint column and row counts, then per column its
// name, uvarint type and the columnar encoding of its values.
const maxNativeFrame = 1 << 30

type nativeInput struct {
	reader *bufio.Reader
	header *columnar.Schema
	first  *columnar.Block
	frame  int
}

func newNativeInput(r io.Reader, _ *Settings) (InputFormat, error) {
	in := &nativeInput{reader: bufio.NewReaderSize(r, 64*1024)}
	first, err := in.readFrame()
	if err == io.EOF {
		in.header = &columnar.Schema{}
		return in, nil
	}
	if err != nil {
		return nil, err
	}
	in.first = first
	in.header = first.Schema()
	return in, nil
}

func (in *nativeInput) Header() *columnar.Schema { return in.header }

func (in *nativeInput) Read() (*columnar.Block, error) {
	if in.first != nil {
		block := in.first
		in.first = nil
		return block, nil
	}
	block, err := in.readFrame()
	if err != nil {
		return nil, err
	}
	if !in.header.Equal(block.Schema()) {
		return nil, errors.New(errors.ErrorTypeStructuralMismatch, "frame columns differ from the first frame").
			WithDetail("frame", in.frame).
			WithDetail("header", in.header.String()).
			WithDetail("block", block.Schema().String())
	}
	return block, nil
}

func (in *nativeInput) readFrame() (*columnar.Block, error) {
	size, err := binary.ReadUvarint(in.reader)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read frame length")
	}
	if size > maxNativeFrame {
		return nil, errors.Newf(errors.ErrorTypeData, "frame of %d bytes exceeds limit", size)
	}
	in.frame++

	var sum [8]byte
	if _, err := io.ReadFull(in.reader, sum[:]); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "truncated frame").WithDetail("frame", in.frame)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(in.reader, payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "truncated frame").WithDetail("frame", in.frame)
	}
	if xxh3.Hash(payload) != binary.LittleEndian.Uint64(sum[:]) {
		return nil, errors.New(errors.ErrorTypeData, "frame checksum mismatch").WithDetail("frame", in.frame)
	}

	block, err := decodeNativeBlock(bufio.NewReader(bytes.NewReader(payload)), uint64(len(payload)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "corrupt frame").WithDetail("frame", in.frame)
	}
	return block, nil
}

// decodeNativeBlock bounds every count by the payload size: each column
// takes at least a byte and each row at least a bit of every column.
func decodeNativeBlock(r *bufio.Reader, size uint64) (*columnar.Block, error) {
	columns, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	rows, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if columns > size {
		return nil, fmt.Errorf("%d columns in a %d byte frame", columns, size)
	}
	if columns > 0 && rows > 8*size {
		return nil, fmt.Errorf("%d rows in a %d byte frame", rows, size)
	}

	block := columnar.NewBlock()
	for i := uint64(0); i < columns; i++ {
		nameLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		if nameLen > size {
			return nil, fmt.Errorf("column name of %d bytes in a %d byte frame", nameLen, size)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		kind, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		col, err := columnar.ReadColumn(r, columnar.ColumnType(kind), int(rows))
		if err != nil {
			return nil, err
		}
		if err := block.AddColumn(string(name), col); err != nil {
			return nil, err
		}
	}
	return block, nil
}

func (in *nativeInput) Close() error { return nil }

type nativeOutput struct {
	writer  io.Writer
	header  *columnar.Schema
	payload []byte
	frame   []byte
	rows    int64
}

func newNativeOutput(w io.Writer, header *columnar.Schema, _ *Settings) (OutputFormat, error) {
	return &nativeOutput{writer: w, header: header}, nil
}

func (out *nativeOutput) Write(block *columnar.Block) error {
	rows, err := blockRows(block)
	if err != nil || rows == 0 {
		return err
	}
	if err := checkHeader(out.header, block); err != nil {
		return err
	}

	p := out.payload[:0]
	p = binary.AppendUvarint(p, uint64(block.NumColumns()))
	p = binary.AppendUvarint(p, uint64(rows))
	for j := 0; j < block.NumColumns(); j++ {
		c := block.ColumnAt(j)
		p = binary.AppendUvarint(p, uint64(len(c.Name)))
		p = append(p, c.Name...)
		p = binary.AppendUvarint(p, uint64(c.Type))
		if p, err = columnar.AppendColumn(p, c.Data.Column()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode column "+c.Name)
		}
	}
	out.payload = p

	f := binary.AppendUvarint(out.frame[:0], uint64(len(p)))
	f = binary.LittleEndian.AppendUint64(f, xxh3.Hash(p))
	f = append(f, p...)
	out.frame = f

	if _, err := out.writer.Write(f); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write frame")
	}
	out.rows += int64(rows)
	return nil
}

func (out *nativeOutput) Finalize() error { return nil }

func (out *nativeOutput) RowsWritten() int64 { return out.rows }

func (out *nativeOutput) Close() error { return nil }
