// Package notify publishes query results to NATS so that PDF viewers and
// other editors can follow builds without polling the control API.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "texbuilder"

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// startedMessage is published on <prefix>.query_started.
type startedMessage struct {
	QueryID  string        `json:"query_id"`
	RootFile string        `json:"root_file"`
	Jobs     []query.JobID `json:"jobs"`
}

// Notifier implements buildsystem.EventEmitter on top of NATS core publish.
type Notifier struct {
	pub    Publisher
	prefix string
	conn   *nats.Conn
}

// New creates a notifier publishing through pub.
func New(pub Publisher, prefix string) *Notifier {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Notifier{pub: pub, prefix: prefix}
}

// Connect dials url and returns a notifier owning the connection.
func Connect(url, prefix string) (*Notifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("texbuilder"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).Build()
	}

	n := New(conn, prefix)
	n.conn = conn
	slog.Info("NATS notifier initialized", slog.String("url", url), slog.String("prefix", n.prefix))
	return n, nil
}

// Subject returns the subject events of kind are published on.
func (n *Notifier) Subject(kind string) string {
	return n.prefix + "." + kind
}

// EmitQueryStarted publishes a query start.
func (n *Notifier) EmitQueryStarted(ctx context.Context, q *query.Query) error {
	return n.publish(ctx, "query_started", startedMessage{
		QueryID:  q.ID(),
		RootFile: q.RootFile(),
		Jobs:     q.PendingJobs(),
	})
}

// EmitQueryEvent publishes one result event.
func (n *Notifier) EmitQueryEvent(ctx context.Context, ev buildsystem.Event) error {
	return n.publish(ctx, string(ev.Kind), ev)
}

func (n *Notifier) publish(ctx context.Context, kind string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal notification").
			WithContext("kind", kind).Build()
	}
	subject := n.Subject(kind)
	if err := n.pub.Publish(subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to publish notification").
			WithContext("subject", subject).Build()
	}
	slog.Debug("Published notification", slog.String("subject", subject), slog.Int("bytes", len(data)))
	return nil
}

// Close drains the connection if the notifier owns one.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return errors.WrapError(err, errors.CategoryNetwork, "failed to drain NATS connection").Build()
	}
	return nil
}
