package offline

import (
	"context"
	"fmt"

	"github.com/mmcdole/drinks/internal/domain"
)

// Message is a command or query sent by a client to the proxy
type Message struct {
	Type string `json:"type"`
}

// CacheNamesReply answers GET_CACHE_NAMES
type CacheNamesReply struct {
	CacheNames []string `json:"cacheNames"`
}

// ErrorReply is sent back for messages that could not be handled
type ErrorReply struct {
	Error string `json:"error"`
}

// HandleMessage processes a client message. The reply is nil for commands
// that produce none (SKIP_WAITING).
func (p *Proxy) HandleMessage(ctx context.Context, msg Message) (any, error) {
	p.logger.Debug("message received", "type", msg.Type)

	switch msg.Type {
	case MsgSkipWaiting:
		if err := p.SkipWaiting(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	case MsgGetCacheNames:
		return CacheNamesReply{CacheNames: p.CacheNames()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMessage, msg.Type)
	}
}
