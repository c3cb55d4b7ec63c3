package notify

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Listener wraps a single lib/pq LISTEN connection. Exactly one instance
// exists per process (owned by cmd/indexer/main.go and handed to
// fasttrack.Listener) so a channel is never consumed twice.
type Listener struct {
	pq     *pq.Listener
	logger *logrus.Entry
}

// NewListener opens a lib/pq Listener against connStr. minReconnect and
// maxReconnect bound the driver's own reconnect backoff.
func NewListener(connStr string, minReconnect, maxReconnect time.Duration, logger *logrus.Entry) *Listener {
	l := &Listener{logger: logger}
	l.pq = pq.NewListener(connStr, minReconnect, maxReconnect, l.onEvent)
	return l
}

func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	if err != nil {
		l.logger.WithError(err).Warn("notify: listener connection event")
	}
}

// Listen subscribes to channel.
func (l *Listener) Listen(channel string) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	return l.pq.Listen(channel)
}

// Notifications returns the raw notification stream from the driver.
func (l *Listener) Notifications() <-chan *pq.Notification {
	return l.pq.Notify
}

// Run blocks, pinging the connection on an idle timeout as recommended
// by lib/pq's Listener docs, until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, onNotify func(payload string)) error {
	const pingInterval = 90 * time.Second
	timer := time.NewTimer(pingInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.pq.Close()
		case n := <-l.pq.Notify:
			if n != nil {
				onNotify(n.Extra)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(pingInterval)
		case <-timer.C:
			go func() {
				if err := l.pq.Ping(); err != nil {
					l.logger.WithError(err).Warn("notify: listener ping failed")
				}
			}()
			timer.Reset(pingInterval)
		}
	}
}

// Close releases the underlying connection.
func (l *Listener) Close() error {
	return l.pq.Close()
}
