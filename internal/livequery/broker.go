package livequery

import (
	"context"
	"fmt"
	"sync"

	"github.com/valkey-io/valkey-go"
)

// Broker carries change notices, one collection path per notice.
type Broker interface {
	Publish(ctx context.Context, paths ...string) error
	Listen(ctx context.Context, fn func(path string)) error
}

// LocalBroker delivers notices to listeners in the same process.
type LocalBroker struct {
	mu        sync.RWMutex
	listeners map[int]func(string)
	next      int
}

// NewLocalBroker creates an in-process broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{listeners: make(map[int]func(string))}
}

func (b *LocalBroker) Publish(ctx context.Context, paths ...string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, path := range paths {
		for _, fn := range b.listeners {
			fn(path)
		}
	}
	return nil
}

// Listen registers fn and blocks until ctx is done.
func (b *LocalBroker) Listen(ctx context.Context, fn func(path string)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.listeners, id)
	b.mu.Unlock()
	return nil
}

// ValkeyBroker fans notices out to every server instance through a Valkey
// pub/sub channel.
type ValkeyBroker struct {
	client  valkey.Client
	channel string
}

// NewValkeyBroker creates a broker publishing on channel.
func NewValkeyBroker(client valkey.Client, channel string) *ValkeyBroker {
	return &ValkeyBroker{client: client, channel: channel}
}

func (b *ValkeyBroker) Publish(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	cmds := make(valkey.Commands, 0, len(paths))
	for _, path := range paths {
		cmds = append(cmds, b.client.B().Publish().Channel(b.channel).Message(path).Build())
	}
	for _, resp := range b.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to publish change: %w", err)
		}
	}
	return nil
}

// Listen subscribes to the channel and blocks until ctx is done or the
// connection fails.
func (b *ValkeyBroker) Listen(ctx context.Context, fn func(path string)) error {
	err := b.client.Receive(ctx, b.client.B().Subscribe().Channel(b.channel).Build(), func(msg valkey.PubSubMessage) {
		fn(msg.Message)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("change subscription ended: %w", err)
	}
	return nil
}
