package rudp

import "hash/crc32"

// crcPolynomial is the reflected form of x^32+x^29+x^28+x^25+x^23+x^22+
// x^10+x^9+x^7+x^4+x^3+1, as called for by spec.md §4.G. hash/crc32.MakeTable
// accepts an arbitrary reflected polynomial and builds the same 256-entry
// table spec.md describes building by hand, so there is nothing here a
// hand-rolled table would do better (see SPEC_FULL.md DOMAIN STACK).
const crcPolynomial = 0x9960034C

var crcTable = crc32.MakeTable(crcPolynomial)

// frameCRC computes the frame trailer CRC (initial value 0, xor-out 0) over
// every byte preceding the trailer.
func frameCRC(data []byte) uint32 {
	return ^crc32.Update(^uint32(0), crcTable, data)
}
