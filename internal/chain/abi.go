package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const basicMerchABIJSON = `[
  {"type":"function","name":"mintSBT","stateMutability":"nonpayable",
   "inputs":[{"name":"_to","type":"address"},{"name":"_eventId","type":"uint256"},{"name":"_tokenURI","type":"string"},{"name":"_signature","type":"bytes"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getSBTByEvent","stateMutability":"view",
   "inputs":[{"name":"_owner","type":"address"},{"name":"_eventId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"SBTMinted","anonymous":false,
   "inputs":[{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"},{"indexed":true,"name":"eventId","type":"uint256"},{"indexed":false,"name":"tokenURI","type":"string"}]},
  {"type":"error","name":"InvalidSignature","inputs":[]},
  {"type":"error","name":"DuplicateEventMint","inputs":[]}
]`

const premiumMerchABIJSON = `[
  {"type":"function","name":"mintCompanion","stateMutability":"payable",
   "inputs":[{"name":"_sbtId","type":"uint256"},{"name":"_organizer","type":"address"},{"name":"_upgrader","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"canMintCompanion","stateMutability":"view",
   "inputs":[{"name":"_sbtId","type":"uint256"},{"name":"_user","type":"address"}],
   "outputs":[{"name":"","type":"bool"},{"name":"","type":"string"}]},
  {"type":"function","name":"upgradeFee","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isSBTUsedForCompanion","stateMutability":"view",
   "inputs":[{"name":"_sbtId","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getPremiumTokenId","stateMutability":"view",
   "inputs":[{"name":"_sbtId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"CompanionMinted","anonymous":false,
   "inputs":[{"indexed":true,"name":"user","type":"address"},{"indexed":true,"name":"sbtId","type":"uint256"},{"indexed":true,"name":"premiumId","type":"uint256"},{"indexed":false,"name":"fee","type":"uint256"}]},
  {"type":"error","name":"SBTNotOwned","inputs":[]},
  {"type":"error","name":"SBTAlreadyUpgraded","inputs":[]},
  {"type":"error","name":"InsufficientFee","inputs":[]}
]`

var (
	basicMerchABI   = mustParseABI("BasicMerch", basicMerchABIJSON)
	premiumMerchABI = mustParseABI("PremiumMerch", premiumMerchABIJSON)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %v", name, err))
	}
	return parsed
}

// customErrorNames maps 4-byte custom error selectors from both contracts to their names.
var customErrorNames = func() map[[4]byte]string {
	out := make(map[[4]byte]string)
	for _, parsed := range []abi.ABI{basicMerchABI, premiumMerchABI} {
		for name, e := range parsed.Errors {
			var sel [4]byte
			copy(sel[:], e.ID[:4])
			out[sel] = name
		}
	}
	return out
}()
