package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

func (c *Client) ProverInit(ctx context.Context) (*InitResult, error) {
	result, err := c.call(ctx, "prover_init", []interface{}{})
	if err != nil {
		return nil, fmt.Errorf("prover_init: %w", err)
	}

	var init InitResult
	if err := json.Unmarshal(result, &init); err != nil {
		return nil, fmt.Errorf("unmarshal init result: %w", err)
	}
	return &init, nil
}

func (c *Client) ComputeBlockProof(ctx context.Context, params ComputeParams) (*ComputeResult, error) {
	result, err := c.call(ctx, "prover_computeBlockProof", []interface{}{params})
	if err != nil {
		return nil, fmt.Errorf("prover_computeBlockProof(%d): %w", params.BlockHeight, err)
	}

	var compute ComputeResult
	if err := json.Unmarshal(result, &compute); err != nil {
		return nil, fmt.Errorf("unmarshal compute result: %w", err)
	}
	if len(compute.Proof) == 0 || string(compute.Proof) == "null" {
		return nil, fmt.Errorf("prover_computeBlockProof(%d): empty proof", params.BlockHeight)
	}
	return &compute, nil
}

func (c *Client) SignFields(ctx context.Context, fields []string, publicKey string) (string, error) {
	result, err := c.call(ctx, "signer_signFields", []interface{}{fields, publicKey})
	if err != nil {
		return "", fmt.Errorf("signer_signFields(%s): %w", publicKey, err)
	}

	var sign SignResult
	if err := json.Unmarshal(result, &sign); err != nil {
		return "", fmt.Errorf("unmarshal sign result: %w", err)
	}
	if sign.Signature == "" {
		return "", fmt.Errorf("signer_signFields(%s): empty signature", publicKey)
	}
	return sign.Signature, nil
}
