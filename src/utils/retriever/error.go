package retriever

import (
	"errors"
	"fmt"
)

var ErrFetchExhausted = errors.New("fetch exhausted")

// All tries of fetching one key failed
type FetchExhaustedError struct {
	Name     string
	Key      any
	Attempts uint64
	Err      error
}

func (self *FetchExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s: key %v failed after %d attempts: %v", ErrFetchExhausted, self.Name, self.Key, self.Attempts, self.Err)
}

func (self *FetchExhaustedError) Unwrap() []error {
	return []error{ErrFetchExhausted, self.Err}
}
