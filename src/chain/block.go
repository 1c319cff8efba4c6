package chain

import (
	"bytes"
	"encoding/json"
)

// Identifies one block of the chain. Never modified after it's created.
type BlockHeader struct {
	Height         int64    `json:"height"`
	Hash           string   `json:"indep_hash"`
	PreviousHash   string   `json:"previous_block"`
	Timestamp      int64    `json:"timestamp"`
	TransactionIds []string `json:"txs"`
}

// Head of the chain as reported by a node
type Tip struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}

// Decoded tags of one transaction
type TagSet map[string]string

type TagState uint8

const (
	// Tags weren't downloaded yet
	TagsUnresolved TagState = iota

	// Tags were downloaded, transaction has none
	TagsEmpty

	TagsResolved
)

func (self TagState) String() string {
	switch self {
	case TagsEmpty:
		return "empty"
	case TagsResolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Tags of one transaction together with the information whether they were downloaded.
// Zero value is unresolved.
type TxTags struct {
	State TagState
	Tags  TagSet
}

func UnresolvedTags() TxTags {
	return TxTags{State: TagsUnresolved}
}

func ResolvedTags(tags TagSet) TxTags {
	if len(tags) == 0 {
		return TxTags{State: TagsEmpty}
	}
	return TxTags{State: TagsResolved, Tags: tags}
}

func (self TxTags) IsResolved() bool {
	return self.State != TagsUnresolved
}

// Unresolved tags are null, resolved are an object (possibly empty)
func (self TxTags) MarshalJSON() ([]byte, error) {
	switch self.State {
	case TagsUnresolved:
		return []byte("null"), nil
	case TagsEmpty:
		return []byte("{}"), nil
	default:
		return json.Marshal(self.Tags)
	}
}

func (self *TxTags) UnmarshalJSON(data []byte) (err error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*self = UnresolvedTags()
		return nil
	}

	var tags TagSet
	err = json.Unmarshal(data, &tags)
	if err != nil {
		return
	}
	*self = ResolvedTags(tags)
	return nil
}

// Block kept in the window, together with tags of its transactions
type SyncedBlock struct {
	Header BlockHeader       `json:"info"`
	Tags   map[string]TxTags `json:"tags"`
}

// New block, tags of all transactions are unresolved
func NewSyncedBlock(header BlockHeader) SyncedBlock {
	tags := make(map[string]TxTags, len(header.TransactionIds))
	for _, id := range header.TransactionIds {
		tags[id] = UnresolvedTags()
	}
	return SyncedBlock{Header: header, Tags: tags}
}

// Ids of transactions that still wait for their tags, in block order
func (self SyncedBlock) UnresolvedTransactions() (out []string) {
	for _, id := range self.Header.TransactionIds {
		if !self.Tags[id].IsResolved() {
			out = append(out, id)
		}
	}
	return
}

// Copy of the block with tags updated. Transactions not in the block are ignored
func (self SyncedBlock) WithTags(update map[string]TxTags) SyncedBlock {
	tags := make(map[string]TxTags, len(self.Tags))
	for id, t := range self.Tags {
		tags[id] = t
	}
	for _, id := range self.Header.TransactionIds {
		t, ok := update[id]
		if ok {
			tags[id] = t
		}
	}
	return SyncedBlock{Header: self.Header, Tags: tags}
}

func (self SyncedBlock) Height() int64 {
	return self.Header.Height
}

func (self SyncedBlock) Hash() string {
	return self.Header.Hash
}

func (self SyncedBlock) PreviousHash() string {
	return self.Header.PreviousHash
}
