package broker

// Broker is a fan-out pub/sub primitive. Subscribers receive every message
// published after their subscription; publishing never blocks the publisher
// beyond delivery to the broker goroutine.
type Broker[T any] struct {
	stopCh    chan struct{}
	publishCh chan T
	subCh     chan chan T
	unsubCh   chan chan T
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		stopCh:    make(chan struct{}),
		publishCh: make(chan T, 1),
		subCh:     make(chan chan T, 1),
		unsubCh:   make(chan chan T, 1),
	}
}

// Start runs the broker loop, delivering published messages to all current
// subscribers. It blocks until Stop is called; run it in a goroutine.
func (broker *Broker[T]) Start() {
	subs := map[chan T]struct{}{}
	for {
		select {
		case <-broker.stopCh:
			for msgCh := range subs {
				close(msgCh)
			}
			return
		case msgCh := <-broker.subCh:
			subs[msgCh] = struct{}{}
		case msgCh := <-broker.unsubCh:
			delete(subs, msgCh)
		case msg := <-broker.publishCh:
			for msgCh := range subs {
				msgCh <- msg
			}
		}
	}
}

func (broker *Broker[T]) Stop() {
	close(broker.stopCh)
}

func (broker *Broker[T]) Subscribe() chan T {
	msgCh := make(chan T, 5)
	broker.subCh <- msgCh
	return msgCh
}

func (broker *Broker[T]) Unsubscribe(msgCh chan T) {
	broker.unsubCh <- msgCh
}

func (broker *Broker[T]) Publish(msg T) {
	broker.publishCh <- msg
}
