package rpc

import "encoding/json"

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// InitResult is returned by prover_init after the sidecar has compiled the
// block-proof circuit.
type InitResult struct {
	VerificationKeyHash string `json:"verificationKeyHash"`
}

// SubmissionParam mirrors one oracle submission on the wire. Slots carrying
// no real oracle are marked as dummies so the circuit can skip them.
type SubmissionParam struct {
	Slot      uint32 `json:"slot"`
	PublicKey string `json:"publicKey"`
	Price     string `json:"price"`
	Signature string `json:"signature"`
	IsDummy   bool   `json:"isDummy"`
}

type ComputeParams struct {
	BlockHeight         uint32            `json:"blockHeight"`
	Submissions         []SubmissionParam `json:"submissions"`
	WhitelistCommitment string            `json:"whitelistCommitment"`
}

// ComputeResult carries the serialized proof and the aggregate price it
// attests to.
type ComputeResult struct {
	Proof json.RawMessage `json:"proof"`
	Price string          `json:"price"`
}

type SignResult struct {
	Signature string `json:"signature"`
}
