package api

import (
	"context"
	"errors"
	"fmt"
)

// ChainInfo from POST /v1/chain/get_info
type ChainInfo struct {
	ServerVersion            string `json:"server_version"`
	ChainID                  string `json:"chain_id"`
	HeadBlockNum             int64  `json:"head_block_num"`
	LastIrreversibleBlockNum int64  `json:"last_irreversible_block_num"`
	HeadBlockID              string `json:"head_block_id"`
	HeadBlockTime            string `json:"head_block_time"`
	HeadBlockProducer        string `json:"head_block_producer"`
}

// GetInfo returns the chain metadata.
func (c *Client) GetInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.post(ctx, "/v1/chain/get_info", struct{}{}, &info); err != nil {
		return nil, fmt.Errorf("get chain info: %w", err)
	}
	return &info, nil
}

// ChainID returns the chain id reported by GetInfo.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	info, err := c.GetInfo(ctx)
	if err != nil {
		return "", err
	}
	if info.ChainID == "" {
		return "", errors.New("get chain info: empty chain_id")
	}
	return info.ChainID, nil
}
