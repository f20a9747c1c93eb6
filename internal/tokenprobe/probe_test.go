package tokenprobe

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packUint(t *testing.T, v int64) string {
	t.Helper()
	uint256, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	raw, err := abi.Arguments{{Type: uint256}}.Pack(big.NewInt(v))
	require.NoError(t, err)
	return hexutil.Encode(raw)
}

func packString(t *testing.T, s string) string {
	t.Helper()
	strType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	raw, err := abi.Arguments{{Type: strType}}.Pack(s)
	require.NoError(t, err)
	return hexutil.Encode(raw)
}

func TestDecodeUint(t *testing.T) {
	v, ok := decodeUint(packUint(t, 42))
	require.True(t, ok)
	assert.Equal(t, "42", v.String())

	_, ok = decodeUint("0x")
	assert.False(t, ok, "empty payload must be treated as no-value rather than zero")
}

func TestDecodeStringHygiene(t *testing.T) {
	s := decodeString(packString(t, "USD Coin"))
	require.NotNil(t, s)
	assert.Equal(t, "USD Coin", *s)

	// Whitespace and embedded NUL bytes are stripped.
	s = decodeString(packString(t, "  Wrapped Ether \x00\x00"))
	require.NotNil(t, s)
	assert.Equal(t, "Wrapped Ether", *s)

	// A string that decodes to empty after hygiene is nil, not "".
	s = decodeString(packString(t, "   \x00"))
	assert.Nil(t, s)

	// A payload exceeding the byte ceiling is rejected outright.
	huge := packString(t, strings.Repeat("a", maxStringBytes+64))
	assert.Nil(t, decodeString(huge))
}

func TestSelectorsAreWellKnown(t *testing.T) {
	// These four-byte selectors are part of the ERC-165/721/1155 public
	// interface and must match the values every client hard-codes.
	assert.Equal(t, "0x01ffc9a7", selectorERC165)
	assert.Equal(t, "0x80ac58cd", selectorERC721)
	assert.Equal(t, "0xd9b67a26", selectorERC1155)
}

func TestEncodeSupportsInterfacePadsToOneWord(t *testing.T) {
	calldata := encodeSupportsInterface(selectorERC721)
	// 4-byte function selector + 32-byte word for the bytes4 argument.
	raw, err := hexutil.Decode(calldata)
	require.NoError(t, err)
	assert.Len(t, raw, 4+32)
	assert.Equal(t, selectorSupportsInterface, hexutil.Encode(raw[:4]))
}
