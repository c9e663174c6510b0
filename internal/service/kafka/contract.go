package kafka

import "context"

type (
	Publisher interface {
		SendMessage(ctx context.Context, key, value []byte) error
	}

	Consumer interface {
		ReadMessage(ctx context.Context) (key, value []byte, err error)
	}

	MessageBroker interface {
		Publisher
		Consumer
		Close() error
	}
)
