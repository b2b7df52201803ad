package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const feeCollectorABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "_integrator", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_integratorFee", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_protocolFee", "type": "uint256"}
    ],
    "name": "FeesCollected",
    "type": "event"
  }
]`

var (
	feeCollectorABI     abi.ABI
	feeCollectorABIOnce sync.Once
	feeCollectorABIErr  error
)

// FeeCollectorABI returns the parsed fee collector ABI.
func FeeCollectorABI() (abi.ABI, error) {
	feeCollectorABIOnce.Do(func() {
		feeCollectorABI, feeCollectorABIErr = abi.JSON(strings.NewReader(feeCollectorABIJSON))
	})
	return feeCollectorABI, feeCollectorABIErr
}
