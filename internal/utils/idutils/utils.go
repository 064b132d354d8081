package idutils

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

// IDGenerator hands out snowflake IDs. One generator must be shared per node ID, since two nodes with the same ID produce colliding IDs.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given node ID (0-1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	sfNode, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrap(err, "无法创建 ID 生成器")
	}

	return &IDGenerator{node: sfNode}, nil
}

// GenerateSnowflakeId generates an ID.
func (g *IDGenerator) GenerateSnowflakeId() int64 {
	return g.node.Generate().Int64()
}

// FormatSnowflakeId converts an ID to its string form.
func FormatSnowflakeId(id int64) string {
	return snowflake.ParseInt64(id).String()
}
