package model

type Network string

const (
	NetworkMainnet  Network = "mainnet"
	NetworkDevnet   Network = "devnet"
	NetworkLightnet Network = "lightnet"
)

func (n Network) String() string {
	return string(n)
}

// ChainStatus is the consensus status of the block an event was observed in.
// A status transition (pending -> included) is a new observation, not an
// update of the old one.
type ChainStatus string

const (
	ChainStatusPending  ChainStatus = "pending"
	ChainStatusIncluded ChainStatus = "included"
)

func (s ChainStatus) String() string {
	return string(s)
}

// TxStatus is the execution status of the transaction that emitted an event.
type TxStatus string

const (
	TxStatusApplied TxStatus = "applied"
	TxStatusFailed  TxStatus = "failed"
)

func (s TxStatus) String() string {
	return string(s)
}
