package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kalaytan/fxsim/pkg/market"
)

// BarRecordSize is the fixed length of one binary bar record: four
// little-endian float64 prices followed by an int64 bucket time.
const BarRecordSize = 40

// AppendBarRecord appends the binary encoding of b to dst.
func AppendBarRecord(dst []byte, b market.Bar) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(b.O))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(b.H))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(b.L))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(b.C))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(b.T))
	return dst
}

// EncodeBarRecord returns the 40-byte encoding of b.
func EncodeBarRecord(b market.Bar) []byte {
	return AppendBarRecord(make([]byte, 0, BarRecordSize), b)
}

// DecodeBarRecord reads one record from the front of data.
func DecodeBarRecord(data []byte) (market.Bar, error) {
	if len(data) < BarRecordSize {
		return market.Bar{}, fmt.Errorf("wire: bar record: need %d bytes, have %d", BarRecordSize, len(data))
	}
	return market.Bar{
		O: math.Float64frombits(binary.LittleEndian.Uint64(data[0:8])),
		H: math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		L: math.Float64frombits(binary.LittleEndian.Uint64(data[16:24])),
		C: math.Float64frombits(binary.LittleEndian.Uint64(data[24:32])),
		T: int64(binary.LittleEndian.Uint64(data[32:40])),
	}, nil
}
