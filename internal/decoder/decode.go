package decoder

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dando385/evm-indexer/internal/model"
)

// Param is one ordered, name-keyed decoded value (spec §9: "Represent
// decoded event parameters as an ordered field-keyed record (not as an
// open map)"). Value is always a string — decimal for integers, a hex
// string for addresses/bytes/bytes32, "true"/"false" for bool.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Decoded is the decode contract's output (spec §4.4).
type Decoded struct {
	EventName          string
	CanonicalSignature string
	StandardTag        string
	Params             []Param
	RawData            string // set instead of (not in addition to) Params on data-decode failure
}

// RawLog is the minimal log shape Decode needs: topics in wire order
// (topics[0] is the event signature hash) and the hex-encoded data blob.
type RawLog struct {
	Topics []string
	Data   string
}

// Decode implements spec §4.4's decode contract. ok is false when
// topic0 is unknown, in which case the caller leaves the log's decoded
// fields null per spec §8's "Unknown topic0" boundary behavior.
func (r *Registry) Decode(log RawLog) (Decoded, bool) {
	if len(log.Topics) == 0 {
		return Decoded{}, false
	}
	d, ok := r.lookup(log.Topics[0])
	if !ok {
		return Decoded{}, false
	}

	out := Decoded{
		EventName:          d.Name,
		CanonicalSignature: d.CanonicalSignature,
		StandardTag:        d.StandardTag,
	}

	topicCursor := 1 // topics[0] is the signature hash
	var dataParams []ParamSpec
	params := make([]Param, 0, len(d.Params))

	for _, p := range d.Params {
		if p.Indexed && topicCursor < len(log.Topics) {
			params = append(params, Param{Name: p.Name, Value: decodeIndexed(p.Type, log.Topics[topicCursor])})
			topicCursor++
			continue
		}
		// Declared indexed but no topic left (e.g. the ERC-20 reading of
		// Transfer's third param), or declared non-indexed: both are
		// sourced from data, jointly decoded below in declaration order.
		dataParams = append(dataParams, p)
	}

	if len(dataParams) > 0 {
		decoded, err := decodeData(dataParams, log.Data)
		if err != nil {
			out.RawData = log.Data
			return out, true
		}
		params = append(params, decoded...)
	}

	out.Params = params
	return out, true
}

func decodeIndexed(typeName, topic string) string {
	switch {
	case typeName == "address":
		return model.AddrFromTopic(topic)
	case typeName == "bool":
		v := topicToBigInt(topic)
		if v.Sign() != 0 {
			return "true"
		}
		return "false"
	case strings.HasPrefix(typeName, "uint"):
		return topicToBigInt(topic).String()
	case strings.HasPrefix(typeName, "int"):
		// Signed: the topic word is two's complement.
		v := topicToBigInt(topic)
		if v.Bit(255) == 1 {
			v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 256))
		}
		return v.String()
	default:
		// bytes32 and dynamic types (string/bytes/arrays): indexed-hash
		// representation, verbatim, per spec §4.4.
		return model.NormalizeHex(topic)
	}
}

func topicToBigInt(topic string) *big.Int {
	b, ok := model.TopicDataBytes(topic)
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(b)
}

// decodeData jointly ABI-decodes the non-indexed (or indexed-but-data-
// sourced) parameters from the log's data blob, per spec §4.4: "decoded
// jointly from data using canonical ABI decoding over the list of their
// types."
func decodeData(specs []ParamSpec, data string) ([]Param, error) {
	args := make(abi.Arguments, 0, len(specs))
	for _, s := range specs {
		t, err := abi.NewType(s.Type, "", nil)
		if err != nil {
			return nil, err
		}
		args = append(args, abi.Argument{Name: s.Name, Type: t})
	}

	raw, ok := model.TopicDataBytes(data)
	if !ok {
		return nil, errDecodeFailed
	}
	values, err := args.UnpackValues(raw)
	if err != nil {
		return nil, err
	}

	out := make([]Param, len(specs))
	for i, s := range specs {
		out[i] = Param{Name: s.Name, Value: renderValue(values[i])}
	}
	return out, nil
}

var errDecodeFailed = &decodeError{}

type decodeError struct{}

func (e *decodeError) Error() string { return "decoder: malformed data payload" }

// renderValue converts one ABI-unpacked Go value into the string form
// spec §4.4 wants: decimal for integers, lowercase hex for
// addresses/bytes, unmodified for strings/bools.
func renderValue(v interface{}) string {
	switch t := v.(type) {
	case common.Address:
		return strings.ToLower(t.Hex())
	case bool:
		if t {
			return "true"
		}
		return "false"
	case *big.Int:
		return t.String()
	case [32]byte:
		return model.NormalizeHex(common.Bytes2Hex(t[:]))
	case []byte:
		return model.NormalizeHex(common.Bytes2Hex(t))
	case string:
		return t
	default:
		return anyToString(v)
	}
}

func anyToString(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
