package tokenprobe

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// selector4 returns the 4-byte function selector for a canonical
// signature, the same keccak-and-truncate technique the decoder uses
// for event topics (spec glossary: "Interface selector (ERC-165)").
func selector4(signature string) string {
	hash := crypto.Keccak256([]byte(signature))
	return hexutil.Encode(hash[:4])
}

var (
	selectorSupportsInterface = selector4("supportsInterface(bytes4)")
	selectorERC721            = "0x80ac58cd"
	selectorERC1155           = "0xd9b67a26"
	selectorERC165            = "0x01ffc9a7"

	selectorTotalSupply = selector4("totalSupply()")
	selectorDecimals    = selector4("decimals()")
	selectorBalanceOf   = selector4("balanceOf(address)")
	selectorName        = selector4("name()")
	selectorSymbol      = selector4("symbol()")
	selectorURI         = selector4("uri(uint256)")
)

// encodeSupportsInterface builds the calldata for
// supportsInterface(bytes4), right-padding the 4-byte interface id into
// a 32-byte ABI word.
func encodeSupportsInterface(interfaceID string) string {
	id := common.FromHex(interfaceID)
	word := make([]byte, 32)
	copy(word, id)
	return selectorSupportsInterface + common.Bytes2Hex(word)
}

// encodeBalanceOfZero builds the calldata for balanceOf(address(0)),
// the probe call spec §4.5 step 3 specifies.
func encodeBalanceOfZero() string {
	return selectorBalanceOf + common.Bytes2Hex(make([]byte, 32))
}

// encodeURIZero builds the calldata for uri(0).
func encodeURIZero() string {
	return selectorURI + common.Bytes2Hex(make([]byte, 32))
}
