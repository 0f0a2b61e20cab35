package dlmm

import (
	"encoding/binary"
	"math"

	"github.com/gagliardetto/solana-go"

	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
)

// Field offsets into the serialized LbPair account, including the 8-byte
// account discriminator. Only the fields the swap path needs are decoded.
const (
	lbPairMinLen     = 568
	offsetActiveID   = 76
	offsetBinStep    = 80
	offsetTokenXMint = 88
	offsetTokenYMint = 120
	offsetReserveX   = 152
	offsetReserveY   = 184
	offsetOracle     = 536
)

// binsPerArray is the pool program's fixed bin-array capacity.
const binsPerArray = 70

// lbPair is the decoded slice of pool state the quote and swap paths use.
type lbPair struct {
	ActiveID   int32
	BinStep    uint16
	TokenXMint solana.PublicKey
	TokenYMint solana.PublicKey
	ReserveX   solana.PublicKey
	ReserveY   solana.PublicKey
	Oracle     solana.PublicKey
}

func parseLbPair(data []byte) (lbPair, error) {
	if len(data) < lbPairMinLen {
		return lbPair{}, clierr.New(clierr.CodeUnavailable, "pool account data too short")
	}
	return lbPair{
		ActiveID:   int32(binary.LittleEndian.Uint32(data[offsetActiveID:])),
		BinStep:    binary.LittleEndian.Uint16(data[offsetBinStep:]),
		TokenXMint: solana.PublicKeyFromBytes(data[offsetTokenXMint : offsetTokenXMint+32]),
		TokenYMint: solana.PublicKeyFromBytes(data[offsetTokenYMint : offsetTokenYMint+32]),
		ReserveX:   solana.PublicKeyFromBytes(data[offsetReserveX : offsetReserveX+32]),
		ReserveY:   solana.PublicKeyFromBytes(data[offsetReserveY : offsetReserveY+32]),
		Oracle:     solana.PublicKeyFromBytes(data[offsetOracle : offsetOracle+32]),
	}, nil
}

// price returns the active bin's price of token X denominated in token Y
// base units per base unit: (1 + binStep/10000)^activeID. Both sides of the
// pinned pair carry six decimals, so no decimal adjustment applies.
func (p lbPair) price() float64 {
	return math.Pow(1+float64(p.BinStep)/10_000, float64(p.ActiveID))
}

// binArrayIndex returns the index of the bin array containing a bin id,
// flooring toward negative infinity as the pool program does.
func binArrayIndex(binID int32) int64 {
	idx := int64(binID) / binsPerArray
	if int64(binID)%binsPerArray < 0 {
		idx--
	}
	return idx
}

// binArrayAddress derives the PDA of a pool's bin array.
func binArrayAddress(program, pool solana.PublicKey, index int64) (solana.PublicKey, error) {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(index))
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bin_array"), pool.Bytes(), idx[:]},
		program,
	)
	return addr, err
}

// eventAuthorityAddress derives the program's Anchor event authority PDA.
func eventAuthorityAddress(program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("__event_authority")},
		program,
	)
	return addr, err
}
