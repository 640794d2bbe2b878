package relay

import (
	"time"

	"github.com/papercomputeco/ragstream/pkg/stream"
	"github.com/papercomputeco/ragstream/pkg/upstream"
)

// DefaultTimeout bounds a request when Config.Timeout is unset.
const DefaultTimeout = 5 * time.Minute

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Searcher is the upstream RAG binding. If nil, queries fail with
	// "AI binding not available".
	Searcher upstream.Searcher

	// Search holds the fixed parameters sent with every query.
	Search upstream.Options

	// Format is the framing of streamed answers.
	Format stream.Format

	// Timeout bounds a whole request, upstream call and relay included.
	Timeout time.Duration

	// KeepAlive is the interval between keep-alive comments in the events
	// and raw formats. Zero uses DefaultKeepAlive, a negative value turns
	// them off.
	KeepAlive time.Duration

	// MaxPending bounds a partial upstream payload held for completion.
	MaxPending int

	// FollowUp enables prompt augmentation from previousResponse.
	FollowUp bool

	// MCP mounts the MCP ask tool at /mcp.
	MCP bool
}
