package arweave

type NetworkInfo struct {
	Network          string `json:"network"`
	Version          int64  `json:"version"`
	Release          int64  `json:"release"`
	Height           int64  `json:"height"`
	Current          string `json:"current"`
	Blocks           int64  `json:"blocks"`
	Peers            int64  `json:"peers"`
	QueueLength      int64  `json:"queue_length"`
	NodeStateLatency int64  `json:"node_state_latency"`
}

// Fields of the block needed to follow the chain. Hashes are kept base64url encoded.
type Block struct {
	IndepHash     string   `json:"indep_hash"`
	Hash          string   `json:"hash"`
	PreviousBlock string   `json:"previous_block"`
	Height        int64    `json:"height"`
	Timestamp     int64    `json:"timestamp"`
	Txs           []string `json:"txs"`
	TxRoot        string   `json:"tx_root"`
	RewardAddr    string   `json:"reward_addr"`
	WeaveSize     string   `json:"weave_size"`
	BlockSize     string   `json:"block_size"`
}

type Tag struct {
	Name  Base64String `json:"name"`
	Value Base64String `json:"value"`
}
