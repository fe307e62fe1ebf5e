package id

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var ErrNotInitialized = errors.New("id: snowflake node not initialized")

var (
	node    *snowflake.Node
	once    sync.Once
	initErr error
)

// Init initializes the Snowflake node with the given node ID.
// Only the first call has an effect; later calls return its result.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a new globally unique int64 ID using the Snowflake algorithm.
// IDs are time-ordered and unique across distributed instances.
// Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}

// Next is New for callers that cannot guarantee Init ran.
func Next() (int64, error) {
	if node == nil {
		return 0, ErrNotInitialized
	}
	return node.Generate().Int64(), nil
}
