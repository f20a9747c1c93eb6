// Package model holds the row and fragment shapes that flow between the
// RPC client, the block assembler, the event decoder, and the write queue.
package model

// BlockHeader mirrors the blocks table (spec §3). Hash-valued fields are
// lowercase 0x-prefixed hex; Number/GasLimit/GasUsed/Size are native
// integers; BaseFeePerGas, when present, stays a decimal string because it
// is a 256-bit value on some chains.
type BlockHeader struct {
	Number           uint64
	Hash             string
	ParentHash       string
	Miner            string
	Timestamp        uint64
	GasLimit         uint64
	GasUsed          uint64
	Size             uint64
	BaseFeePerGas    *string
	TransactionCount int
	ExtraFields      map[string]any
}

// Transaction merges a transaction with its receipt into one row, per
// spec §3's "tx and its receipt are persisted as a single row" invariant.
type Transaction struct {
	Hash                 string
	BlockNumber          uint64
	TransactionIndex      int
	From                 string
	To                   *string
	Value                string
	Gas                  uint64
	GasPrice             *string
	MaxFeePerGas         *string
	MaxPriorityFeePerGas *string
	Input                string
	Nonce                uint64
	Type                 uint64
	ChainID              *string
	AccessList           []byte // JSON-encoded, nil when absent

	Status            uint64
	GasUsed           uint64
	CumulativeGasUsed uint64
	EffectiveGasPrice string
	ContractAddress   *string
	LogsCount         int
}

// Log mirrors the logs table. DecodedParams is a JSON blob produced by
// internal/decoder; nil when topic0 is unknown.
type Log struct {
	TransactionHash string
	BlockNumber     uint64
	LogIndex        int
	Address         string
	Data            string
	Topic0          *string
	Topic1          *string
	Topic2          *string
	Topic3          *string
	Removed         bool
	EventName       *string
	EventSignature  *string
	EventStandard   *string
	DecodedParams   []byte
}

// Contract mirrors the contracts table.
type Contract struct {
	Address            string
	CreatorAddress     string
	CreationTxHash     string
	CreationBlockNumber uint64
	Bytecode           string
	IsERC20            bool
	IsERC721           bool
	IsERC1155          bool
}

// ERC20Token mirrors the erc20_tokens table.
type ERC20Token struct {
	Address     string
	Name        *string
	Symbol      *string
	Decimals    *int
	TotalSupply *string
}

// ERC721Token mirrors the erc721_tokens table.
type ERC721Token struct {
	Address     string
	Name        *string
	Symbol      *string
	TotalSupply *string
}

// ERC1155Token mirrors the erc1155_tokens table.
type ERC1155Token struct {
	Address string
	URI     *string
}

// Address mirrors the addresses table.
type Address struct {
	Address        string
	FirstSeenBlock uint64
	FirstSeenTx    string
	IsContract     bool
	TxCount        int
	Balance        string
}

// AddressTransaction mirrors the address_transactions composite-key table.
type AddressTransaction struct {
	Address         string
	TransactionHash string
	BlockNumber     uint64
	IsFrom          bool
	IsTo            bool
}

// ERC20Transfer mirrors the erc20_transfers table.
type ERC20Transfer struct {
	TransactionHash string
	LogIndex        int
	BlockNumber     uint64
	TokenAddress    string
	From            string
	To              string
	Value           string
}

// ERC721Transfer mirrors the erc721_transfers table.
type ERC721Transfer struct {
	TransactionHash string
	LogIndex        int
	BlockNumber     uint64
	TokenAddress    string
	From            string
	To              string
	TokenID         string
}

// ERC1155Transfer mirrors the erc1155_transfers table. Value is per
// TokenID, as spec §3 requires for TransferSingle; TransferBatch is
// parsed as log metadata only (see decoder) and never reaches this slice.
type ERC1155Transfer struct {
	TransactionHash string
	LogIndex        int
	BlockNumber     uint64
	TokenAddress    string
	Operator        string
	From            string
	To              string
	TokenID         string
	Value           string
}

// BlockFragment is the full set of typed slices derived from one block,
// suitable for one atomic write (spec §4.3 "Output", glossary).
type BlockFragment struct {
	Header              BlockHeader
	Transactions        []Transaction
	Logs                []Log
	Addresses           []Address
	AddressTransactions []AddressTransaction
	Contracts           []Contract
	ERC20Tokens         []ERC20Token
	ERC721Tokens        []ERC721Token
	ERC1155Tokens       []ERC1155Token
	ERC20Transfers      []ERC20Transfer
	ERC721Transfers     []ERC721Transfer
	ERC1155Transfers    []ERC1155Transfer
}

// IndexerState mirrors the singleton indexer_state row (spec §3).
type IndexerState struct {
	ForwardBlock  uint64
	BackwardBlock uint64
	LatestBlock   uint64
	IsSynced      bool
	LastUpdated   int64 // unix seconds
}
