package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dando385/evm-indexer/internal/model"
)

func strPtr(s string) *string { return &s }

func topicWord(suffix string) string {
	return "0x" + strings.Repeat("0", 64-len(suffix)) + suffix
}

func TestClassifyTransferERC20(t *testing.T) {
	log := model.Log{
		TransactionHash: "0xabc", LogIndex: 0, BlockNumber: 10,
		Address: "0xtoken",
		Topic0:  strPtr(erc20Or721TransferTopic0),
		Topic1:  strPtr(topicWord("aa")),
		Topic2:  strPtr(topicWord("bb")),
		Data:    "0x00000000000000000000000000000000000000000000000000000000000003e8",
	}
	var frag model.BlockFragment
	classifyTransfer(&log, &frag)

	require.Len(t, frag.ERC20Transfers, 1)
	assert.Empty(t, frag.ERC721Transfers)
	tr := frag.ERC20Transfers[0]
	assert.Equal(t, model.AddrFromTopic(topicWord("aa")), tr.From)
	assert.Equal(t, model.AddrFromTopic(topicWord("bb")), tr.To)
	assert.Equal(t, log.Data, tr.Value)
}

func TestClassifyTransferERC721(t *testing.T) {
	log := model.Log{
		TransactionHash: "0xabc", LogIndex: 1, BlockNumber: 10,
		Address: "0xtoken",
		Topic0:  strPtr(erc20Or721TransferTopic0),
		Topic1:  strPtr(topicWord("aa")),
		Topic2:  strPtr(topicWord("bb")),
		Topic3:  strPtr(topicWord("ff")),
		Data:    "0x",
	}
	var frag model.BlockFragment
	classifyTransfer(&log, &frag)

	require.Len(t, frag.ERC721Transfers, 1)
	assert.Empty(t, frag.ERC20Transfers)
	assert.Equal(t, topicWord("ff"), frag.ERC721Transfers[0].TokenID)
}

func TestClassifyTransferERC1155Single(t *testing.T) {
	data := "0x" + strings.Repeat("0", 62) + "05" + strings.Repeat("0", 62) + "09"
	log := model.Log{
		TransactionHash: "0xabc", LogIndex: 2, BlockNumber: 10,
		Address: "0xtoken",
		Topic0:  strPtr(erc1155SingleTopic0),
		Topic1:  strPtr(topicWord("aa")),
		Topic2:  strPtr(topicWord("bb")),
		Topic3:  strPtr(topicWord("cc")),
		Data:    data,
	}
	var frag model.BlockFragment
	classifyTransfer(&log, &frag)

	require.Len(t, frag.ERC1155Transfers, 1)
	tr := frag.ERC1155Transfers[0]
	assert.Equal(t, topicWord("05"), tr.TokenID)
	assert.Equal(t, topicWord("09"), tr.Value)
}

func TestClassifyTransferIgnoresShortERC1155Data(t *testing.T) {
	log := model.Log{
		Topic0: strPtr(erc1155SingleTopic0),
		Topic1: strPtr(topicWord("aa")),
		Topic2: strPtr(topicWord("bb")),
		Topic3: strPtr(topicWord("cc")),
		Data:   "0x01",
	}
	var frag model.BlockFragment
	classifyTransfer(&log, &frag)
	assert.Empty(t, frag.ERC1155Transfers, "data shorter than 64 bytes must not be classified")
}

func TestAddressBookKeepsFirstSeenOrder(t *testing.T) {
	ab := newAddressBook()
	ab.see("0xaaa", "0xtx1")
	ab.see("0xbbb", "0xtx2")
	ab.see("0xaaa", "0xtx3") // second sighting must not move or overwrite first-seen tx

	assert.Equal(t, []string{"0xaaa", "0xbbb"}, ab.order)
	assert.Equal(t, "0xtx1", ab.firstTx["0xaaa"])
}
