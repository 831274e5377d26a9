// Package notify announces finished datasets on a NATS subject.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"eventscout/internal/logger"
	"eventscout/internal/models"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "eventscout.datasets"

// DatasetMessage is published once per exported dataset.
type DatasetMessage struct {
	ExportedAt time.Time `json:"exported_at"`
	RunID      string    `json:"run_id"`
	Dataset    string    `json:"dataset"`
	City       string    `json:"city"`
	Genre      string    `json:"genre"`
	Output     string    `json:"output"`
	Events     int       `json:"events"`
}

// Notifier publishes dataset announcements.
type Notifier interface {
	Announce(runID, output string, datasets []models.Dataset) error
	Close() error
}

// conn is the subset of *nats.Conn used here.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// NATSNotifier publishes on a NATS core subject.
type NATSNotifier struct {
	nc      conn
	logger  *logger.Logger
	subject string
}

// Connect dials url and returns a notifier for subject.
func Connect(url, subject string, log *logger.Logger) (*NATSNotifier, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url,
		nats.Name("eventscout"),
		nats.MaxReconnects(3),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newNATSNotifier(nc, subject, log), nil
}

func newNATSNotifier(nc conn, subject string, log *logger.Logger) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}

	return &NATSNotifier{nc: nc, subject: subject, logger: log.Component("notify")}
}

// Announce implements Notifier. Publishing stops at the first failure.
func (n *NATSNotifier) Announce(runID, output string, datasets []models.Dataset) error {
	now := time.Now().UTC()

	for _, ds := range datasets {
		data, err := json.Marshal(DatasetMessage{
			RunID:      runID,
			Dataset:    ds.Key,
			City:       ds.Query.City,
			Genre:      ds.Query.Genre,
			Events:     len(ds.Events),
			Output:     output,
			ExportedAt: now,
		})
		if err != nil {
			return err
		}

		if err := n.nc.Publish(n.subject, data); err != nil {
			return fmt.Errorf("failed to publish %s: %w", ds.Key, err)
		}
	}

	if err := n.nc.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	n.logger.Info("📣 Announced datasets", "subject", n.subject, "count", len(datasets), "run_id", runID)

	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() error {
	return n.nc.Drain()
}

// Nop discards announcements.
type Nop struct{}

// Announce implements Notifier.
func (Nop) Announce(string, string, []models.Dataset) error { return nil }

// Close implements Notifier.
func (Nop) Close() error { return nil }

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}
