package evmrpc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dando385/evm-indexer/internal/model"
)

// rawBlock mirrors the eth_getBlockByNumber JSON response. Every
// hex-encoded field is unmarshaled as a string first and normalized
// explicitly in toHeader/toTransactions, per spec §4.1's normalization
// requirement ("all hex-encoded integers ... are decoded to native
// integer types; addresses are lowercased").
type rawBlock struct {
	Number        string    `json:"number"`
	Hash          string    `json:"hash"`
	ParentHash    string    `json:"parentHash"`
	Miner         string    `json:"miner"`
	Timestamp     string    `json:"timestamp"`
	GasLimit      string    `json:"gasLimit"`
	GasUsed       string    `json:"gasUsed"`
	Size          string    `json:"size"`
	BaseFeePerGas *string   `json:"baseFeePerGas"`
	Transactions  []rawTx   `json:"transactions"`
}

type rawTx struct {
	Hash                 string  `json:"hash"`
	Nonce                string  `json:"nonce"`
	BlockNumber          string  `json:"blockNumber"`
	TransactionIndex     string  `json:"transactionIndex"`
	From                 string  `json:"from"`
	To                   *string `json:"to"`
	Value                string  `json:"value"`
	Gas                  string  `json:"gas"`
	GasPrice             *string `json:"gasPrice"`
	MaxFeePerGas         *string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *string `json:"maxPriorityFeePerGas"`
	Input                string  `json:"input"`
	Type                 *string `json:"type"`
	ChainID              *string `json:"chainId"`
	AccessList           json.RawMessage `json:"accessList"`
}

type rawReceipt struct {
	TransactionHash   string          `json:"transactionHash"`
	CumulativeGasUsed string          `json:"cumulativeGasUsed"`
	EffectiveGasPrice *string         `json:"effectiveGasPrice"`
	GasUsed           string          `json:"gasUsed"`
	ContractAddress   *string         `json:"contractAddress"`
	Status            *string         `json:"status"`
	Logs              []rawLog        `json:"logs"`
}

type rawLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	TransactionHash  string   `json:"transactionHash"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
}

func decodeUint64(s string) uint64 {
	if s == "" {
		return 0
	}
	v, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0
	}
	return v
}

func decodeDecimalString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	big, err := hexutil.DecodeBig(*s)
	if err != nil {
		return nil
	}
	out := big.String()
	return &out
}

func decodeDecimalStringOrZero(s string) string {
	if s == "" {
		return "0"
	}
	big, err := hexutil.DecodeBig(s)
	if err != nil {
		return "0"
	}
	return big.String()
}

func normalizeAddr(a *string) *string {
	if a == nil {
		return nil
	}
	n := model.NormalizeHex(*a)
	return &n
}

func (b *rawBlock) toHeader() model.BlockHeader {
	return model.BlockHeader{
		Number:           decodeUint64(b.Number),
		Hash:             model.NormalizeHex(b.Hash),
		ParentHash:       model.NormalizeHex(b.ParentHash),
		Miner:            model.NormalizeHex(b.Miner),
		Timestamp:        decodeUint64(b.Timestamp),
		GasLimit:         decodeUint64(b.GasLimit),
		GasUsed:          decodeUint64(b.GasUsed),
		Size:             decodeUint64(b.Size),
		BaseFeePerGas:    decodeDecimalString(b.BaseFeePerGas),
		TransactionCount: len(b.Transactions),
	}
}

// toTransactions produces pre-receipt Transaction rows: the
// receipt-merged fields (Status, GasUsed, CumulativeGasUsed,
// EffectiveGasPrice, ContractAddress, LogsCount) are left zero-valued
// and are filled in by the block assembler once receipts arrive.
func (b *rawBlock) toTransactions() []model.Transaction {
	out := make([]model.Transaction, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		out = append(out, model.Transaction{
			Hash:                 model.NormalizeHex(t.Hash),
			BlockNumber:          decodeUint64(t.BlockNumber),
			TransactionIndex:     int(decodeUint64(t.TransactionIndex)),
			From:                 model.NormalizeHex(t.From),
			To:                   normalizeAddr(t.To),
			Value:                decodeDecimalStringOrZero(t.Value),
			Gas:                  decodeUint64(t.Gas),
			GasPrice:             decodeDecimalString(t.GasPrice),
			MaxFeePerGas:         decodeDecimalString(t.MaxFeePerGas),
			MaxPriorityFeePerGas: decodeDecimalString(t.MaxPriorityFeePerGas),
			Input:                t.Input,
			Nonce:                decodeUint64(t.Nonce),
			Type:                 decodeTypeOrZero(t.Type),
			ChainID:              decodeDecimalString(t.ChainID),
			AccessList:           t.AccessList,
		})
	}
	return out
}

func decodeTypeOrZero(t *string) uint64 {
	if t == nil {
		return 0
	}
	return decodeUint64(*t)
}

// toReceipt converts the wire receipt into a Receipt whose Logs carry
// only the raw (not yet decoded) log fields; internal/decoder fills in
// EventName/EventSignature/EventStandard/DecodedParams later.
func (r *rawReceipt) toReceipt() Receipt {
	logs := make([]model.Log, 0, len(r.Logs))
	for _, lg := range r.Logs {
		l := model.Log{
			TransactionHash: model.NormalizeHex(lg.TransactionHash),
			BlockNumber:     decodeUint64(lg.BlockNumber),
			LogIndex:        int(decodeUint64(lg.LogIndex)),
			Address:         model.NormalizeHex(lg.Address),
			Data:            model.NormalizeHex(lg.Data),
			Removed:         lg.Removed,
		}
		if len(lg.Topics) > 0 {
			v := model.NormalizeHex(lg.Topics[0])
			l.Topic0 = &v
		}
		if len(lg.Topics) > 1 {
			v := model.NormalizeHex(lg.Topics[1])
			l.Topic1 = &v
		}
		if len(lg.Topics) > 2 {
			v := model.NormalizeHex(lg.Topics[2])
			l.Topic2 = &v
		}
		if len(lg.Topics) > 3 {
			v := model.NormalizeHex(lg.Topics[3])
			l.Topic3 = &v
		}
		logs = append(logs, l)
	}

	status := uint64(1)
	if r.Status != nil {
		status = decodeUint64(*r.Status)
	}

	effGasPrice := "0"
	if r.EffectiveGasPrice != nil {
		effGasPrice = decodeDecimalStringOrZero(*r.EffectiveGasPrice)
	}

	return Receipt{
		TransactionHash:   model.NormalizeHex(r.TransactionHash),
		Status:            status,
		GasUsed:           decodeUint64(r.GasUsed),
		CumulativeGasUsed: decodeUint64(r.CumulativeGasUsed),
		EffectiveGasPrice: effGasPrice,
		ContractAddress:   normalizeAddr(r.ContractAddress),
		Logs:              logs,
	}
}

// Receipt is the normalized receipt shape the assembler merges into a
// Transaction row and whose Logs it folds into the block fragment.
type Receipt struct {
	TransactionHash   string
	Status            uint64
	GasUsed           uint64
	CumulativeGasUsed uint64
	EffectiveGasPrice string
	ContractAddress   *string
	Logs              []model.Log
}

// Block is the per-block result of BlocksWithTransactions.
type Block struct {
	Header       model.BlockHeader
	Transactions []model.Transaction
}

func parseRawBlock(raw json.RawMessage) (*rawBlock, error) {
	if raw == nil || string(raw) == "null" {
		return nil, nil
	}
	var b rawBlock
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decoding block: %w", err)
	}
	return &b, nil
}

func parseRawReceipt(raw json.RawMessage) (*rawReceipt, error) {
	if raw == nil || string(raw) == "null" {
		return nil, nil
	}
	var r rawReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}
	return &r, nil
}
