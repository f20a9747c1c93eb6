package decoder

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/dando385/evm-indexer/internal/model"
)

func transferTopic0() string {
	r := NewRegistry()
	d, ok := r.lookup(strings.ToLower(topic0Of("Transfer(address,address,uint256)")))
	if !ok {
		panic("Transfer descriptor missing from standard table")
	}
	return d.Topic0
}

func packUint256(t *testing.T, v uint64) string {
	t.Helper()
	typ, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	args := abi.Arguments{{Type: typ}}
	packed, err := args.Pack(new(bigIntHelper).from(v))
	require.NoError(t, err)
	return "0x" + common.Bytes2Hex(packed)
}

// bigIntHelper builds the *big.Int argument packUint256 hands to
// abi.Arguments.Pack.
type bigIntHelper struct{}

func (bigIntHelper) from(v uint64) interface{} {
	return new(big.Int).SetUint64(v)
}

func addrTopic(addr string) string {
	return "0x000000000000000000000000" + strings.TrimPrefix(strings.ToLower(addr), "0x")
}

func TestDecodeERC20ThreeTopicTransferSourcesValueFromData(t *testing.T) {
	r := NewRegistry()
	fromTopic := addrTopic("1111111111111111111111111111111111111111")
	toTopic := addrTopic("2222222222222222222222222222222222222222")

	log := RawLog{
		Topics: []string{transferTopic0(), fromTopic, toTopic},
		Data:   packUint256(t, 42),
	}

	d, ok := r.Decode(log)
	require.True(t, ok)
	require.Equal(t, "Transfer", d.EventName)
	require.Empty(t, d.RawData)
	require.Len(t, d.Params, 3)
	require.Equal(t, "from", d.Params[0].Name)
	require.Equal(t, model.AddrFromTopic(fromTopic), d.Params[0].Value)
	require.Equal(t, "to", d.Params[1].Name)
	require.Equal(t, model.AddrFromTopic(toTopic), d.Params[1].Value)
	require.Equal(t, "value", d.Params[2].Name)
	require.Equal(t, "42", d.Params[2].Value)
}

func TestDecodeERC721FourTopicTransferSourcesValueFromTopic(t *testing.T) {
	r := NewRegistry()
	fromTopic := addrTopic("1111111111111111111111111111111111111111")
	toTopic := addrTopic("2222222222222222222222222222222222222222")
	tokenIDTopic := "0x" + strings.Repeat("0", 63) + "7"

	log := RawLog{
		Topics: []string{transferTopic0(), fromTopic, toTopic, tokenIDTopic},
		Data:   "0x",
	}

	d, ok := r.Decode(log)
	require.True(t, ok)
	require.Len(t, d.Params, 3)
	require.Equal(t, "value", d.Params[2].Name)
	require.Equal(t, "7", d.Params[2].Value, "the 4th topic (token id) must decode as the indexed 'value' param")
}

func TestDecodeUnknownTopic0ReturnsNotOK(t *testing.T) {
	r := NewRegistry()
	log := RawLog{Topics: []string{"0x" + strings.Repeat("ab", 32)}, Data: "0x"}
	_, ok := r.Decode(log)
	require.False(t, ok)
}

func TestDecodeMalformedDataFallsBackToRawData(t *testing.T) {
	r := NewRegistry()
	fromTopic := addrTopic("1111111111111111111111111111111111111111")
	toTopic := addrTopic("2222222222222222222222222222222222222222")

	log := RawLog{
		Topics: []string{transferTopic0(), fromTopic, toTopic},
		Data:   "0x01", // too short to decode a uint256
	}

	d, ok := r.Decode(log)
	require.True(t, ok)
	require.Equal(t, "0x01", d.RawData)
	require.Empty(t, d.Params)
}

func TestAddEventSignatureIsVisibleToSubsequentDecodes(t *testing.T) {
	r := NewRegistry()
	custom := Descriptor{
		Name:               "Custom",
		CanonicalSignature: "Custom(address)",
		StandardTag:        "custom",
		Params:             []ParamSpec{{Name: "who", Type: "address", Indexed: true}},
	}
	topic0 := topic0Of(custom.CanonicalSignature)
	r.AddEventSignature(topic0, custom)

	whoTopic := addrTopic("3333333333333333333333333333333333333333")
	d, ok := r.Decode(RawLog{Topics: []string{topic0, whoTopic}, Data: "0x"})
	require.True(t, ok)
	require.Equal(t, "Custom", d.EventName)
	require.Equal(t, model.AddrFromTopic(whoTopic), d.Params[0].Value)
}
