package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/focusflow/go/internal/httpjson"
	"github.com/nats-io/nats.go"
)

const checkTimeout = 5 * time.Second

// Status is the result of one health check
type Status struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected bool     `json:"database_connected"`
	NATSConnected     bool     `json:"nats_connected"`
	Subscribers       int      `json:"subscribers"`
	Errors            []string `json:"errors"`
}

// PingFunc reports whether a dependency is reachable
type PingFunc func(ctx context.Context) error

type database struct {
	name string
	ping PingFunc
}

// Checker verifies the server's dependencies. The zero value checks nothing
// and is always healthy.
type Checker struct {
	databases   []database
	natsConn    *nats.Conn
	subscribers func() int
}

// NewChecker creates a Checker
func NewChecker() *Checker {
	return &Checker{}
}

// AddDatabase registers a database to ping
func (c *Checker) AddDatabase(name string, ping PingFunc) {
	c.databases = append(c.databases, database{name: name, ping: ping})
}

// SetNATS registers the NATS connection to watch. nil disables the check.
func (c *Checker) SetNATS(nc *nats.Conn) {
	c.natsConn = nc
}

// SetSubscriberCount registers a source for the live subscriber count
func (c *Checker) SetSubscriberCount(fn func() int) {
	c.subscribers = fn
}

// Check runs every registered check
func (c *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy:           true,
		DatabaseConnected: true,
		Errors:            []string{},
	}

	for _, db := range c.databases {
		if err := db.ping(ctx); err != nil {
			status.DatabaseConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("%s ping failed: %v", db.name, err))
		}
	}

	if c.natsConn != nil {
		status.NATSConnected = c.natsConn.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if c.subscribers != nil {
		status.Subscribers = c.subscribers()
	}
	return status
}

// ServeHTTP reports the status as JSON, with 503 when unhealthy
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := c.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	httpjson.Write(w, code, status)
}
