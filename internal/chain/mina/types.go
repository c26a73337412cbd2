package mina

import "encoding/json"

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

func (e *GraphQLError) Error() string {
	return e.Message
}

type BestChainBlock struct {
	ProtocolState ProtocolState `json:"protocolState"`
}

type ProtocolState struct {
	ConsensusState ConsensusState `json:"consensusState"`
}

// Numeric fields in the daemon schema are serialized as decimal strings.
type ConsensusState struct {
	BlockHeight      string `json:"blockHeight"`
	SlotSinceGenesis string `json:"slotSinceGenesis"`
}

// EventBatch groups the events one block emitted for the queried contract.
type EventBatch struct {
	BlockInfo BlockInfo   `json:"blockInfo"`
	EventData []EventData `json:"eventData"`
}

type BlockInfo struct {
	Height                 uint32 `json:"height"`
	StateHash              string `json:"stateHash"`
	ParentHash             string `json:"parentHash"`
	GlobalSlotSinceGenesis uint32 `json:"globalSlotSinceGenesis"`
	ChainStatus            string `json:"chainStatus"`
	Timestamp              string `json:"timestamp"`
}

type EventData struct {
	Type            string          `json:"type"`
	Data            json.RawMessage `json:"data"`
	TransactionInfo TransactionInfo `json:"transactionInfo"`
}

type TransactionInfo struct {
	Hash   string `json:"hash"`
	Memo   string `json:"memo"`
	Status string `json:"status"`
}
