package assembler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/dando385/evm-indexer/internal/decoder"
	"github.com/dando385/evm-indexer/internal/evmrpc"
	"github.com/dando385/evm-indexer/internal/model"
	"github.com/dando385/evm-indexer/internal/tokenprobe"
)

// addressBook accumulates the observed-addresses set for one block,
// preserving first-seen order (spec §4.3: "For each address in the
// observed set with a first tx seen in this block, emit an address row").
type addressBook struct {
	order      []string
	firstTx    map[string]string
	isContract map[string]bool
}

func newAddressBook() *addressBook {
	return &addressBook{firstTx: make(map[string]string), isContract: make(map[string]bool)}
}

func (ab *addressBook) see(addr, txHash string) {
	if addr == "" {
		return
	}
	if _, ok := ab.firstTx[addr]; !ok {
		ab.firstTx[addr] = txHash
		ab.order = append(ab.order, addr)
	}
}

func (ab *addressBook) markContract(addr string) {
	ab.isContract[addr] = true
}

type contractCreation struct {
	address         string
	creator         string
	creationTxHash  string
	blockNumber     uint64
}

// processBlockData implements spec §4.3's process_block_data: per-tx
// extraction, per-log decode and transfer classification, contract
// creation probing, and final address-row emission.
func (a *Assembler) processBlockData(ctx context.Context, b *evmrpc.Block, receiptByHash map[string]*evmrpc.Receipt) (model.BlockFragment, error) {
	frag := model.BlockFragment{Header: b.Header}
	ab := newAddressBook()
	var creations []contractCreation

	for _, tx := range b.Transactions {
		receipt, ok := receiptByHash[tx.Hash]
		if !ok {
			a.log.WithField("tx", tx.Hash).Warn("missing receipt, dropping transaction")
			continue
		}

		merged := tx
		merged.Status = receipt.Status
		merged.GasUsed = receipt.GasUsed
		merged.CumulativeGasUsed = receipt.CumulativeGasUsed
		merged.EffectiveGasPrice = receipt.EffectiveGasPrice
		merged.ContractAddress = receipt.ContractAddress
		merged.LogsCount = len(receipt.Logs)
		frag.Transactions = append(frag.Transactions, merged)

		ab.see(tx.From, tx.Hash)
		frag.AddressTransactions = append(frag.AddressTransactions, model.AddressTransaction{
			Address: tx.From, TransactionHash: tx.Hash, BlockNumber: b.Header.Number, IsFrom: true, IsTo: false,
		})
		if tx.To != nil {
			ab.see(*tx.To, tx.Hash)
			frag.AddressTransactions = append(frag.AddressTransactions, model.AddressTransaction{
				Address: *tx.To, TransactionHash: tx.Hash, BlockNumber: b.Header.Number, IsFrom: false, IsTo: true,
			})
		}

		if receipt.ContractAddress != nil {
			ab.see(*receipt.ContractAddress, tx.Hash)
			ab.markContract(*receipt.ContractAddress)
			creations = append(creations, contractCreation{
				address: *receipt.ContractAddress, creator: tx.From,
				creationTxHash: tx.Hash, blockNumber: b.Header.Number,
			})
		}

		for _, lg := range receipt.Logs {
			log := lg
			decodeLog(a.registry, &log)
			frag.Logs = append(frag.Logs, log)
			ab.see(log.Address, tx.Hash)
			classifyTransfer(&log, &frag)
		}
	}

	if len(creations) > 0 {
		if err := a.processContractCreations(ctx, creations, &frag); err != nil {
			return frag, err
		}
	}

	for _, addr := range ab.order {
		frag.Addresses = append(frag.Addresses, model.Address{
			Address:        addr,
			FirstSeenBlock: b.Header.Number,
			FirstSeenTx:    ab.firstTx[addr],
			IsContract:     ab.isContract[addr],
			TxCount:        1,
			Balance:        "0",
		})
	}

	return frag, nil
}

// decodeLog invokes the event decoder and attaches its (nullable)
// output to the log record, per spec §4.3/§4.4.
func decodeLog(registry *decoder.Registry, log *model.Log) {
	topics := make([]string, 0, 4)
	for _, t := range []*string{log.Topic0, log.Topic1, log.Topic2, log.Topic3} {
		if t == nil {
			break
		}
		topics = append(topics, *t)
	}
	if len(topics) == 0 {
		return
	}

	d, ok := registry.Decode(decoder.RawLog{Topics: topics, Data: log.Data})
	if !ok {
		return
	}

	name, sig, tag := d.EventName, d.CanonicalSignature, d.StandardTag
	log.EventName, log.EventSignature, log.EventStandard = &name, &sig, &tag

	if d.RawData != "" {
		raw, _ := json.Marshal(map[string]string{"_rawData": d.RawData})
		log.DecodedParams = raw
		return
	}
	encoded, err := json.Marshal(d.Params)
	if err == nil {
		log.DecodedParams = encoded
	}
}

// classifyTransfer applies spec §4.3's three topic-count/data-length
// rules to recognize ERC-20, ERC-721, and ERC-1155 single transfers
// directly from raw log shape, independent of whether the event
// decoder's registry happens to know the Transfer/TransferSingle
// signature (the classification is part of the core contract, not an
// artifact of the decode registry).
func classifyTransfer(log *model.Log, frag *model.BlockFragment) {
	if log.Topic0 == nil {
		return
	}
	topic0 := strings.ToLower(*log.Topic0)
	topicCount := topicCount(log)

	switch {
	case topic0 == erc20Or721TransferTopic0 && topicCount == 3:
		frag.ERC20Transfers = append(frag.ERC20Transfers, model.ERC20Transfer{
			TransactionHash: log.TransactionHash, LogIndex: log.LogIndex, BlockNumber: log.BlockNumber,
			TokenAddress: log.Address,
			From:         model.AddrFromTopic(*log.Topic1),
			To:           model.AddrFromTopic(*log.Topic2),
			Value:        log.Data,
		})
	case topic0 == erc20Or721TransferTopic0 && topicCount == 4:
		frag.ERC721Transfers = append(frag.ERC721Transfers, model.ERC721Transfer{
			TransactionHash: log.TransactionHash, LogIndex: log.LogIndex, BlockNumber: log.BlockNumber,
			TokenAddress: log.Address,
			From:         model.AddrFromTopic(*log.Topic1),
			To:           model.AddrFromTopic(*log.Topic2),
			TokenID:      model.NormalizeHex(*log.Topic3),
		})
	case topic0 == erc1155SingleTopic0 && topicCount == 4 && dataByteLen(log.Data) >= 64:
		idBytes, valueBytes := splitERC1155Data(log.Data)
		frag.ERC1155Transfers = append(frag.ERC1155Transfers, model.ERC1155Transfer{
			TransactionHash: log.TransactionHash, LogIndex: log.LogIndex, BlockNumber: log.BlockNumber,
			TokenAddress: log.Address,
			Operator:     model.AddrFromTopic(*log.Topic1),
			From:         model.AddrFromTopic(*log.Topic2),
			To:           model.AddrFromTopic(*log.Topic3),
			TokenID:      idBytes,
			Value:        valueBytes,
		})
	}
}

func topicCount(log *model.Log) int {
	n := 0
	for _, t := range []*string{log.Topic0, log.Topic1, log.Topic2, log.Topic3} {
		if t != nil {
			n++
		}
	}
	return n
}

// dataByteLen returns the byte length of a 0x-prefixed hex blob.
func dataByteLen(data string) int {
	h := strings.TrimPrefix(data, "0x")
	return len(h) / 2
}

// splitERC1155Data extracts the id and value 32-byte words from a
// TransferSingle log's data blob (spec §4.3: "token_id = data[0..32],
// value = data[32..64]"), rendered as raw hex the same way ERC-721's
// token_id and ERC-20's value are (spec §8 scenario 3 allows either
// decimal-string or raw hex; hex keeps all three transfer tables
// consistent with each other).
func splitERC1155Data(data string) (string, string) {
	raw, ok := model.TopicDataBytes(data)
	if !ok || len(raw) < 64 {
		return "0x" + strings.Repeat("0", 64), "0x" + strings.Repeat("0", 64)
	}
	id := model.NormalizeHex(hexString(raw[0:32]))
	value := model.NormalizeHex(hexString(raw[32:64]))
	return id, value
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}

// processContractCreations implements spec §4.3's contract-creation
// handling: batch bytecode fetch, a token-probe fan-out over the new
// addresses, and one contract row (plus at most one token-metadata
// row) per creation.
func (a *Assembler) processContractCreations(ctx context.Context, creations []contractCreation, frag *model.BlockFragment) error {
	addrs := make([]string, len(creations))
	for i, c := range creations {
		addrs[i] = c.address
	}

	bytecodes, err := a.client.CodeBatch(ctx, addrs)
	if err != nil {
		return err
	}

	results := tokenprobe.BatchDetectTokens(ctx, a.client, addrs, a.tokenProbeFanout)

	for i, c := range creations {
		bytecode := ""
		if i < len(bytecodes) {
			bytecode = bytecodes[i]
		}
		res := results[i]

		contract := model.Contract{
			Address:             c.address,
			CreatorAddress:      c.creator,
			CreationTxHash:      c.creationTxHash,
			CreationBlockNumber: c.blockNumber,
			Bytecode:            bytecode,
			IsERC20:             res.Standard == tokenprobe.StandardERC20,
			IsERC721:            res.Standard == tokenprobe.StandardERC721,
			IsERC1155:           res.Standard == tokenprobe.StandardERC1155,
		}
		frag.Contracts = append(frag.Contracts, contract)

		switch res.Standard {
		case tokenprobe.StandardERC20:
			frag.ERC20Tokens = append(frag.ERC20Tokens, model.ERC20Token{
				Address: c.address, Name: res.Name, Symbol: res.Symbol, Decimals: res.Decimals, TotalSupply: res.TotalSupply,
			})
		case tokenprobe.StandardERC721:
			frag.ERC721Tokens = append(frag.ERC721Tokens, model.ERC721Token{
				Address: c.address, Name: res.Name, Symbol: res.Symbol, TotalSupply: res.TotalSupply,
			})
		case tokenprobe.StandardERC1155:
			frag.ERC1155Tokens = append(frag.ERC1155Tokens, model.ERC1155Token{
				Address: c.address, URI: res.URI,
			})
		}
	}
	return nil
}
