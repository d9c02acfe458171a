package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix roots every subject this service publishes on
const DefaultSubjectPrefix = "tripplan"

type NATSPublisher struct {
	nc      conn
	prefix  string
	metrics PublisherMetrics
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("tripplan-server"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, prefix, m), nil
}

func newPublisher(nc conn, prefix string, m PublisherMetrics) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// RoutePlannedEvent announces a completed planning request to other services
type RoutePlannedEvent struct {
	Modality  string     `json:"modality"`
	RouteIDs  []string   `json:"routeIds"`
	Start     [2]float64 `json:"start"`
	End       [2]float64 `json:"end"`
	ZoneStart string     `json:"zoneStart,omitempty"`
	ZoneEnd   string     `json:"zoneEnd,omitempty"`
	FromCache bool       `json:"fromCache"`
	PlannedAt time.Time  `json:"plannedAt"`
}

// PublishRoutePlanned publishes on <prefix>.route.planned.<modality>
func (p *NATSPublisher) PublishRoutePlanned(evt RoutePlannedEvent) error {
	subject := fmt.Sprintf("%s.route.planned.%s", p.prefix, subjectToken(evt.Modality))
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
