package treasury

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI is the published interface of the settlement treasury contract.
const contractABI = `[
  {"type":"function","name":"pledge","stateMutability":"nonpayable","inputs":[{"name":"payee","type":"address"},{"name":"pledgor","type":"address"},{"name":"receiptId","type":"string"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"confirm","stateMutability":"nonpayable","inputs":[{"name":"receiptId","type":"string"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"receiptId","type":"string"}],"outputs":[]},
  {"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[{"name":"receiptId","type":"string"}],"outputs":[]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"nftContract","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// nftABI covers the receipt-NFT event the confirm flow decodes.
const nftABI = `[
  {"type":"event","name":"Minted","inputs":[{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":false}],"anonymous":false}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

var (
	treasuryABI = mustParseABI(contractABI)
	mintABI     = mustParseABI(nftABI)
	mintedEvent = mintABI.Events["Minted"]
)
