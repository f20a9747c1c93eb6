// Package tokenprobe implements spec §4.5's on-chain contract
// classification and metadata read: the ERC-165 -> ERC-721/1155 ->
// ERC-20 cascade, string/uint metadata decoding, and the
// batch_detect_tokens fan-out. Built entirely on eth_call batches
// through internal/evmrpc, the same way the teacher issues one-off
// eth_call probes in geth-07-eth-call/geth-08-abigen but generalized to
// a batch cascade over the full standards cascade rather than one
// ERC-20 read.
package tokenprobe

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dando385/evm-indexer/internal/evmrpc"
)

// Standard names the classification a contract resolved to. Zero value
// StandardNone means the classification cascade found nothing.
type Standard string

const (
	StandardNone    Standard = ""
	StandardERC20   Standard = "ERC20"
	StandardERC721  Standard = "ERC721"
	StandardERC1155 Standard = "ERC1155"
)

// Result is one contract's probe outcome. Standard == StandardNone means
// "no classification, no metadata" (spec §4.5/§7): the address is not a
// recognizable token and every metadata field is left nil.
type Result struct {
	Address     string
	Standard    Standard
	Name        *string
	Symbol      *string
	Decimals    *int
	TotalSupply *string // decimal string, ERC-20 and ERC-721
	URI         *string // ERC-1155 only
}

// maxStringBytes bounds string-typed metadata reads per spec §4.5:
// contracts that return unreasonably long strings (malformed or
// adversarial) are treated as empty rather than decoded in full.
const maxStringBytes = 1000

// DetectToken runs the full classification cascade for one address:
// ERC-165 supportsInterface(0x01ffc9a7) first; if it answers true, probe
// ERC-721 (0x80ac58cd) then ERC-1155 (0xd9b67a26) interface ids; if
// ERC-165 is unsupported or answers false for both, fall back to the
// ERC-20 duck-typed probe (totalSupply/decimals/balanceOf all callable).
// Any call that reverts, times out, or decodes wrong is treated as "no"
// rather than propagated, per spec's token-probe failure policy.
func DetectToken(ctx context.Context, client *evmrpc.Client, addr string) Result {
	res := Result{Address: addr}

	if supports165, ok := callBool(ctx, client, addr, encodeSupportsInterface(selectorERC165)); ok && supports165 {
		if is721, ok := callBool(ctx, client, addr, encodeSupportsInterface(selectorERC721)); ok && is721 {
			res.Standard = StandardERC721
			fillERC721Metadata(ctx, client, &res)
			return res
		}
		if is1155, ok := callBool(ctx, client, addr, encodeSupportsInterface(selectorERC1155)); ok && is1155 {
			res.Standard = StandardERC1155
			fillERC1155Metadata(ctx, client, &res)
			return res
		}
	}

	if looksLikeERC20(ctx, client, addr) {
		res.Standard = StandardERC20
		fillERC20Metadata(ctx, client, &res)
		return res
	}

	return res
}

// looksLikeERC20 duck-types ERC-20 by requiring totalSupply(), decimals(),
// and balanceOf(address) to all resolve to a callable uint256, per spec
// §4.5 step 3's fallback cascade.
func looksLikeERC20(ctx context.Context, client *evmrpc.Client, addr string) bool {
	out, err := client.CallBatch(ctx, []evmrpc.CallParams{
		{To: addr, Data: selectorTotalSupply},
		{To: addr, Data: selectorDecimals},
		{To: addr, Data: encodeBalanceOfZero()},
	})
	if err != nil || len(out) != 3 {
		return false
	}
	for _, r := range out {
		if _, ok := decodeUint(r); !ok {
			return false
		}
	}
	return true
}

func fillERC20Metadata(ctx context.Context, client *evmrpc.Client, res *Result) {
	out, err := client.CallBatch(ctx, []evmrpc.CallParams{
		{To: res.Address, Data: selectorName},
		{To: res.Address, Data: selectorSymbol},
		{To: res.Address, Data: selectorDecimals},
		{To: res.Address, Data: selectorTotalSupply},
	})
	if err != nil || len(out) != 4 {
		return
	}
	res.Name = decodeString(out[0])
	res.Symbol = decodeString(out[1])
	// decimals is only meaningful as a uint8; anything outside that
	// range is a malformed or non-conforming contract, per spec §4.5.
	if d, ok := decodeUint(out[2]); ok && d.IsInt64() && d.Int64() >= 0 && d.Int64() <= 255 {
		v := int(d.Int64())
		res.Decimals = &v
	}
	if ts, ok := decodeUint(out[3]); ok {
		s := ts.String()
		res.TotalSupply = &s
	}
}

// fillERC721Metadata reads name/symbol/totalSupply, tolerant of absence:
// ERC-721 does not mandate totalSupply (only ERC-721Enumerable does), so
// a failed read there leaves TotalSupply nil rather than disqualifying
// the classification, per spec §4.5.
func fillERC721Metadata(ctx context.Context, client *evmrpc.Client, res *Result) {
	out, err := client.CallBatch(ctx, []evmrpc.CallParams{
		{To: res.Address, Data: selectorName},
		{To: res.Address, Data: selectorSymbol},
		{To: res.Address, Data: selectorTotalSupply},
	})
	if err != nil || len(out) != 3 {
		return
	}
	res.Name = decodeString(out[0])
	res.Symbol = decodeString(out[1])
	if ts, ok := decodeUint(out[2]); ok {
		s := ts.String()
		res.TotalSupply = &s
	}
}

func fillERC1155Metadata(ctx context.Context, client *evmrpc.Client, res *Result) {
	out, err := client.CallBatch(ctx, []evmrpc.CallParams{
		{To: res.Address, Data: encodeURIZero()},
	})
	if err != nil || len(out) != 1 {
		return
	}
	res.URI = decodeString(out[0])
}

func callBool(ctx context.Context, client *evmrpc.Client, addr, data string) (bool, bool) {
	out, err := client.CallBatch(ctx, []evmrpc.CallParams{{To: addr, Data: data}})
	if err != nil || len(out) != 1 {
		return false, false
	}
	v, ok := decodeUint(out[0])
	if !ok {
		return false, false
	}
	return v.Sign() != 0, true
}

// decodeUint ABI-decodes a single uint256 return value. ok is false on
// an empty/malformed payload (a revert, or a non-contract address),
// signaling "treat as no" to the cascade.
func decodeUint(hexData string) (*big.Int, bool) {
	raw := common.FromHex(hexData)
	if len(raw) == 0 {
		return nil, false
	}
	uint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, false
	}
	values, err := abi.Arguments{{Type: uint256}}.UnpackValues(raw)
	if err != nil || len(values) != 1 {
		return nil, false
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, false
	}
	return v, true
}

// decodeString ABI-decodes a single dynamic string return value,
// applying spec §4.5's hygiene rules: reject payloads over
// maxStringBytes, strip embedded NUL bytes, trim surrounding
// whitespace, and treat the post-trim empty string as "no value"
// (nil) rather than "".
func decodeString(hexData string) *string {
	raw := common.FromHex(hexData)
	if len(raw) == 0 || len(raw) > maxStringBytes {
		return nil
	}
	strType, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil
	}
	values, err := abi.Arguments{{Type: strType}}.UnpackValues(raw)
	if err != nil || len(values) != 1 {
		return nil
	}
	s, ok := values[0].(string)
	if !ok {
		return nil
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
