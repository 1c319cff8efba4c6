package chain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"
)

func TestWindowTestSuite(t *testing.T) {
	suite.Run(t, new(WindowTestSuite))
}

type WindowTestSuite struct {
	suite.Suite
}

// Consecutive blocks, hashes are prefixed with the fork name
func makeBlocks(fork string, start int64, count int) (out []SyncedBlock) {
	for h := start; h < start+int64(count); h++ {
		out = append(out, NewSyncedBlock(BlockHeader{
			Height:         h,
			Hash:           fmt.Sprintf("%s-%d", fork, h),
			PreviousHash:   fmt.Sprintf("%s-%d", fork, h-1),
			TransactionIds: []string{fmt.Sprintf("tx-%s-%d", fork, h)},
		}))
	}
	return
}

func (s *WindowTestSuite) TestEmpty() {
	w := EmptyWindow(5)
	require.True(s.T(), w.IsEmpty())
	require.Equal(s.T(), NoTipHeight, w.TopHeight())
	require.Equal(s.T(), NoTipHash, w.TopHash())
	require.NoError(s.T(), w.Validate())

	_, ok := w.Find(1)
	require.False(s.T(), ok)
}

func (s *WindowTestSuite) TestAppendTruncatesFront() {
	w, err := NewWindow(3, makeBlocks("a", 10, 2)...)
	require.NoError(s.T(), err)

	w2, err := w.Append(makeBlocks("a", 12, 3)...)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 3, w2.Len())
	require.Equal(s.T(), int64(14), w2.TopHeight())
	require.Equal(s.T(), "a-14", w2.TopHash())

	bottom, ok := w2.Bottom()
	require.True(s.T(), ok)
	require.Equal(s.T(), int64(12), bottom.Height())

	// Original is untouched
	require.Equal(s.T(), 2, w.Len())
	require.Equal(s.T(), int64(11), w.TopHeight())
}

func (s *WindowTestSuite) TestAppendBrokenLink() {
	w, err := NewWindow(5, makeBlocks("a", 10, 2)...)
	require.NoError(s.T(), err)

	_, err = w.Append(makeBlocks("b", 12, 1)...)
	require.Error(s.T(), err)

	var linkErr *ChainLinkageError
	require.ErrorAs(s.T(), err, &linkErr)
	require.Equal(s.T(), int64(11), linkErr.LowerHeight)
	require.Equal(s.T(), int64(12), linkErr.UpperHeight)
}

func (s *WindowTestSuite) TestAppendHeightGap() {
	w, err := NewWindow(5, makeBlocks("a", 10, 2)...)
	require.NoError(s.T(), err)

	_, err = w.Append(makeBlocks("a", 13, 1)...)
	require.True(s.T(), IsChainLinkageError(err))
}

func (s *WindowTestSuite) TestReplaceTail() {
	w, err := NewWindow(5, makeBlocks("a", 10, 3)...)
	require.NoError(s.T(), err)

	fork := makeBlocks("b", 12, 2)
	fork[0].Header.PreviousHash = "a-11"

	w2, err := w.ReplaceTail(1, fork)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 4, w2.Len())
	require.Equal(s.T(), "b-13", w2.TopHash())

	b, ok := w2.Find(12)
	require.True(s.T(), ok)
	require.Equal(s.T(), "b-12", b.Hash())

	// Splice that doesn't link
	_, err = w.ReplaceTail(1, makeBlocks("b", 12, 2))
	require.True(s.T(), IsChainLinkageError(err))

	_, err = w.ReplaceTail(4, fork)
	require.ErrorIs(s.T(), err, ErrWindowIndex)
}

func (s *WindowTestSuite) TestReplaceTailSpliceTruncatedAway() {
	w, err := NewWindow(3, makeBlocks("a", 10, 3)...)
	require.NoError(s.T(), err)

	// New chain is long enough to push the old blocks out, the splice isn't checked
	w2, err := w.ReplaceTail(1, makeBlocks("b", 12, 3))
	require.NoError(s.T(), err)
	require.Equal(s.T(), 3, w2.Len())
	require.Equal(s.T(), "b-14", w2.TopHash())
	require.NoError(s.T(), w2.Validate())
}

func (s *WindowTestSuite) TestNewWindowValidates() {
	blocks := makeBlocks("a", 10, 4)
	blocks[2].Header.PreviousHash = "x"

	_, err := NewWindow(10, blocks...)
	var linkErr *ChainLinkageError
	require.ErrorAs(s.T(), err, &linkErr)
	require.Equal(s.T(), int64(11), linkErr.LowerHeight)
	require.Equal(s.T(), int64(12), linkErr.UpperHeight)

	// Broken link falls off the front
	w, err := NewWindow(1, blocks...)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(13), w.TopHeight())
}

func (s *WindowTestSuite) TestWithBlock() {
	w, err := NewWindow(5, makeBlocks("a", 10, 2)...)
	require.NoError(s.T(), err)

	b := w.At(1).WithTags(map[string]TxTags{"tx-a-11": ResolvedTags(TagSet{"App-Name": "test"})})
	w2, err := w.WithBlock(1, b)
	require.NoError(s.T(), err)
	require.Equal(s.T(), TagsResolved, w2.At(1).Tags["tx-a-11"].State)
	require.Equal(s.T(), TagsUnresolved, w.At(1).Tags["tx-a-11"].State)

	_, err = w.WithBlock(0, b)
	require.Error(s.T(), err)
}

func (s *WindowTestSuite) TestTagsJSON() {
	block := NewSyncedBlock(BlockHeader{
		Height:         1,
		Hash:           "h1",
		PreviousHash:   "h0",
		TransactionIds: []string{"unresolved", "empty", "resolved"},
	}).WithTags(map[string]TxTags{
		"empty":    ResolvedTags(nil),
		"resolved": ResolvedTags(TagSet{"Content-Type": "text/plain"}),
	})

	data, err := json.Marshal(block)
	require.NoError(s.T(), err)
	require.JSONEq(s.T(), `{
		"info": {"height": 1, "indep_hash": "h1", "previous_block": "h0", "timestamp": 0, "txs": ["unresolved", "empty", "resolved"]},
		"tags": {"unresolved": null, "empty": {}, "resolved": {"Content-Type": "text/plain"}}
	}`, string(data))

	var decoded SyncedBlock
	require.NoError(s.T(), json.Unmarshal(data, &decoded))
	require.Equal(s.T(), TagsUnresolved, decoded.Tags["unresolved"].State)
	require.Equal(s.T(), TagsEmpty, decoded.Tags["empty"].State)
	require.Equal(s.T(), TagsResolved, decoded.Tags["resolved"].State)
	require.Equal(s.T(), []string{"unresolved"}, decoded.UnresolvedTransactions())
}

// Random appends and tail replacements always leave a linked, bounded window
func TestWindowProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxSize := rapid.IntRange(1, 10).Draw(t, "maxSize")
		w := EmptyWindow(maxSize)
		next := int64(1)
		forks := 0

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			discard := rapid.IntRange(0, w.Len()).Draw(t, "discard")
			count := rapid.IntRange(0, 5).Draw(t, "count")

			forks++
			start := next - int64(discard)
			blocks := makeBlocks(fmt.Sprintf("f%d", forks), start, count)
			if len(blocks) > 0 && w.Len() > discard {
				blocks[0].Header.PreviousHash = w.At(w.Len() - discard - 1).Hash()
			}

			out, err := w.ReplaceTail(discard, blocks)
			if err != nil {
				t.Fatalf("replace failed: %v", err)
			}
			if out.Len() > maxSize {
				t.Fatalf("window too long: %d > %d", out.Len(), maxSize)
			}
			if err := out.Validate(); err != nil {
				t.Fatalf("invalid window: %v", err)
			}
			if count > 0 || discard > 0 {
				w = out
				next = start + int64(count)
			}
		}
	})
}
