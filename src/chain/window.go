package chain

import (
	"encoding/json"
)

// Returned by TopHeight/TopHash of an empty window
const (
	NoTipHeight = int64(0)
	NoTipHash   = ""
)

// Bounded suffix of the chain, ordered by height, low to high.
// Window is a value: operations never modify it, they return a new window.
type Window struct {
	blocks  []SyncedBlock
	maxSize int
}

func EmptyWindow(maxSize int) Window {
	return Window{maxSize: maxSize}
}

// Validated window made of the last maxSize blocks
func NewWindow(maxSize int, blocks ...SyncedBlock) (out Window, err error) {
	out = Window{
		blocks:  truncate(append([]SyncedBlock(nil), blocks...), maxSize),
		maxSize: maxSize,
	}
	err = out.Validate()
	if err != nil {
		return EmptyWindow(maxSize), err
	}
	return
}

func truncate(blocks []SyncedBlock, maxSize int) []SyncedBlock {
	if maxSize <= 0 {
		return nil
	}
	if len(blocks) > maxSize {
		return blocks[len(blocks)-maxSize:]
	}
	return blocks
}

// Checks the link between two consecutive blocks
func checkLink(lower, upper *SyncedBlock) error {
	if upper.Height() != lower.Height()+1 || upper.PreviousHash() != lower.Hash() {
		return &ChainLinkageError{
			LowerHeight: lower.Height(),
			UpperHeight: upper.Height(),
			Expected:    lower.Hash(),
			Actual:      upper.PreviousHash(),
		}
	}
	return nil
}

// Checks blocks form a chain. Returns the first broken link.
func Validate(blocks []SyncedBlock) error {
	for i := 1; i < len(blocks); i++ {
		err := checkLink(&blocks[i-1], &blocks[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// Walks the whole window, fails on the first broken link
func (self Window) Validate() error {
	return Validate(self.blocks)
}

// Appends blocks sorted by height. First block needs to link to the current top.
func (self Window) Append(blocks ...SyncedBlock) (Window, error) {
	return self.ReplaceTail(0, blocks)
}

// Removes the last discard blocks and appends new ones in their place.
func (self Window) ReplaceTail(discard int, blocks []SyncedBlock) (out Window, err error) {
	if discard < 0 || discard > len(self.blocks) {
		return self, ErrWindowIndex
	}

	kept := len(self.blocks) - discard
	joined := make([]SyncedBlock, 0, kept+len(blocks))
	joined = append(joined, self.blocks[:kept]...)
	joined = append(joined, blocks...)

	out = Window{
		blocks:  truncate(joined, self.maxSize),
		maxSize: self.maxSize,
	}

	// Blocks that fell off the front can't break the chain
	dropped := len(joined) - len(out.blocks)
	splice := kept - dropped
	if splice < 1 {
		splice = 1
	}
	for i := splice; i < len(out.blocks); i++ {
		err = checkLink(&out.blocks[i-1], &out.blocks[i])
		if err != nil {
			return self, err
		}
	}
	return
}

// Copy of the window with the i-th block replaced. Header of the block can't change.
func (self Window) WithBlock(i int, block SyncedBlock) (out Window, err error) {
	if i < 0 || i >= len(self.blocks) {
		return self, ErrWindowIndex
	}
	if self.blocks[i].Hash() != block.Hash() || self.blocks[i].Height() != block.Height() {
		return self, &ChainLinkageError{
			LowerHeight: block.Height() - 1,
			UpperHeight: block.Height(),
			Expected:    self.blocks[i].Hash(),
			Actual:      block.Hash(),
		}
	}

	blocks := make([]SyncedBlock, len(self.blocks))
	copy(blocks, self.blocks)
	blocks[i] = block
	return Window{blocks: blocks, maxSize: self.maxSize}, nil
}

func (self Window) Len() int {
	return len(self.blocks)
}

func (self Window) MaxSize() int {
	return self.maxSize
}

func (self Window) IsEmpty() bool {
	return len(self.blocks) == 0
}

// Copy of the blocks, low to high
func (self Window) Blocks() []SyncedBlock {
	return append([]SyncedBlock(nil), self.blocks...)
}

func (self Window) At(i int) SyncedBlock {
	return self.blocks[i]
}

func (self Window) Top() (SyncedBlock, bool) {
	if len(self.blocks) == 0 {
		return SyncedBlock{}, false
	}
	return self.blocks[len(self.blocks)-1], true
}

func (self Window) Bottom() (SyncedBlock, bool) {
	if len(self.blocks) == 0 {
		return SyncedBlock{}, false
	}
	return self.blocks[0], true
}

func (self Window) TopHeight() int64 {
	top, ok := self.Top()
	if !ok {
		return NoTipHeight
	}
	return top.Height()
}

func (self Window) TopHash() string {
	top, ok := self.Top()
	if !ok {
		return NoTipHash
	}
	return top.Hash()
}

// Block at the given height. Heights in the window are consecutive, so it's an offset lookup.
func (self Window) Find(height int64) (SyncedBlock, bool) {
	bottom, ok := self.Bottom()
	if !ok {
		return SyncedBlock{}, false
	}
	idx := height - bottom.Height()
	if idx < 0 || idx >= int64(len(self.blocks)) {
		return SyncedBlock{}, false
	}
	return self.blocks[idx], true
}

func (self Window) MarshalJSON() ([]byte, error) {
	if self.blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(self.blocks)
}
