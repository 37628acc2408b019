package eventsvc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
)

const (
	streamName     = "LMS"
	streamSubjects = "lms.>"
	maxReconnects  = 10
	reconnectWait  = 2 * time.Second
	connectionName = "lms-api"
)

type natsPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger core.Logger
}

var _ core.EventPublisher = (*natsPublisher)(nil)

// NewNatsPublisher connects to NATS and makes sure the LMS stream exists.
// With an empty url it returns a publisher that drops every event.
func NewNatsPublisher(conf *core.Config, logger core.Logger) (*natsPublisher, error) {
	if conf.Nats.URL == "" {
		logger.Info("nats url not set, domain events will not be published")
		return &natsPublisher{logger: logger}, nil
	}

	nc, err := nats.Connect(conf.Nats.URL,
		nats.Name(connectionName),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	p := &natsPublisher{nc: nc, logger: logger}
	js, err := nc.JetStream(nats.PublishAsyncErrHandler(p.asyncError))
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "getting jetstream context")
	}
	if _, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{streamSubjects},
		Storage:  nats.FileStorage,
	}); err != nil {
		logger.Warn("creating nats stream (may already exist)", err)
	}
	p.js = js
	return p, nil
}

// asyncError reports the events the server failed to acknowledge.
func (p *natsPublisher) asyncError(_ nats.JetStream, msg *nats.Msg, err error) {
	p.logger.Warn("publishing event", errors.Wrap(err, msg.Subject))
}

// Publish sends the event asynchronously. Failures are logged, never returned.
func (p *natsPublisher) Publish(subject, userID string, props map[string]interface{}) {
	if p == nil || p.js == nil {
		return
	}
	data, err := json.Marshal(newEvent(subject, userID, props))
	if err != nil {
		p.logger.Warn("marshalling event", errors.Wrap(err, subject))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.logger.Warn("publishing event", errors.Wrap(err, subject))
	}
}

// Close flushes pending events and closes the connection.
func (p *natsPublisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
		p.logger.Warn("timed out waiting for pending events")
	}
	p.nc.Close()
}

func newEvent(subject, userID string, props map[string]interface{}) core.Event {
	return core.Event{
		ID:         uuid.NewString(),
		Subject:    subject,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	}
}
