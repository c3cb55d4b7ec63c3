// Package notify carries the internal pair_created signal from the
// Block Processor to the Fast-Track Listener over Postgres NOTIFY,
// grounded on the teacher's broadcast.Service publish/PublishX shape
// (swapped from a Centrifugo websocket relay to a Postgres channel —
// the read-only web API the teacher fans out to is out of scope here).
package notify

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/go-pg/pg/v10"
	"github.com/sirupsen/logrus"
)

var channelNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Publisher sends NOTIFY messages on validated channel names.
type Publisher struct {
	db     *pg.DB
	logger *logrus.Entry
}

// NewPublisher constructs a Publisher.
func NewPublisher(db *pg.DB, logger *logrus.Entry) *Publisher {
	return &Publisher{db: db, logger: logger}
}

// PublishPairCreated marshals payload and issues pg_notify(channel, ...)
// on channel. Errors are logged, never returned, matching the teacher's
// publish()'s best-effort fire-and-forget contract.
func (p *Publisher) PublishPairCreated(channel string, payload interface{}) {
	if err := validateChannel(channel); err != nil {
		p.logger.Error(err)
		return
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error(err)
		return
	}

	if _, err := p.db.Exec("SELECT pg_notify(?, ?)", channel, string(msg)); err != nil {
		p.logger.Warn(err)
	}
}

func validateChannel(channel string) error {
	if !channelNameRe.MatchString(channel) {
		return fmt.Errorf("notify: invalid channel name %q", channel)
	}
	return nil
}
