package types

// Network identifies the cluster the payment program is deployed on.
type Network string

const (
	NetworkMainnet  Network = "mainnet-beta"
	NetworkDevnet   Network = "devnet"
	NetworkTestnet  Network = "testnet"
	NetworkLocalnet Network = "localnet"

	// NetworkInProcess runs the program against the embedded ledger.
	NetworkInProcess Network = "in-process"
)

var rpcEndpoints = map[Network]string{
	NetworkMainnet:  "https://api.mainnet-beta.solana.com",
	NetworkDevnet:   "https://api.devnet.solana.com",
	NetworkTestnet:  "https://api.testnet.solana.com",
	NetworkLocalnet: "http://127.0.0.1:8899",
}

// DefaultRPCUrl returns the public endpoint for a network, or "" for the
// in-process ledger.
func (n Network) DefaultRPCUrl() string {
	return rpcEndpoints[n]
}

func (n Network) IsRemote() bool {
	_, ok := rpcEndpoints[n]
	return ok
}

func (n Network) String() string {
	return string(n)
}
