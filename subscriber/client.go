/*
Package subscriber is the top of the stack: one Client owns one logical
subscription and exposes the blocking Read loop plus the Subscribe and Kill
control operations that can interrupt it from another goroutine.

The concurrency contract is deliberately narrow. Exactly one goroutine calls
Read in a loop; any other goroutine may call Subscribe or Kill at any moment,
including while that Read sits blocked inside a long poll. Interruption works
by forcing the socket closed underneath the blocked read, which is the only
way to abort a long poll without waiting out the server's own timeout.
*/
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pnlite/pnlite/cipher"
	"github.com/pnlite/pnlite/connection"
	"github.com/pnlite/pnlite/connection/longpoll"
	"github.com/pnlite/pnlite/connection/transporter"
	"github.com/pnlite/pnlite/logger"
	"github.com/pnlite/pnlite/subscription"
)

// ErrNotSubscribed is returned by Read when there is no active subscription
// to poll, either because Subscribe was never called or because the last one
// failed validation.
var ErrNotSubscribed = errors.New("not subscribed to any channels")

type Client struct {
	logger *logger.Logger
	conn   connection.Connection

	// clientId identifies this client instance to the origin. Generated once
	// and reused across every reconnect.
	clientId string

	// lock guards the subscription state below. It is never held across
	// blocking I/O, so Subscribe and Kill always get in promptly.
	lock      sync.Mutex
	sub       *subscription.Subscription
	decrypter *cipher.Cipher
	timetoken int64
	killed    bool

	// generation counts Subscribe calls so a Read that started under an old
	// subscription cannot clobber the fresh timetoken when it finally returns
	generation uint64
}

func New(logger *logger.Logger, conn connection.Connection) *Client {
	clientId := uuid.New().String()
	logger.AddClientId(clientId)

	return &Client{
		logger:   logger,
		conn:     conn,
		clientId: clientId,
	}
}

// Subscribe replaces the active subscription wholesale: new parameters, kill
// flag cleared, timetoken back to the live position. Any Read blocked under
// the old subscription is forced to abort rather than deliver stale-channel
// data.
func (c *Client) Subscribe(sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	var decrypter *cipher.Cipher
	if sub.CipherKey != "" {
		var err error
		if decrypter, err = cipher.New(sub.CipherKey); err != nil {
			return err
		}
	}

	c.lock.Lock()
	c.sub = sub
	c.decrypter = decrypter
	c.timetoken = 0
	c.killed = false
	c.generation++
	c.lock.Unlock()

	c.logger.Infof("Subscribed to channels [%s]", sub.ChannelList())

	c.conn.Abort(fmt.Errorf("subscription replaced"))
	return nil
}

// Kill stops the client for good: the in-flight poll is aborted and every
// future Read fails fast until the next Subscribe. Safe to call from any
// goroutine, any number of times.
func (c *Client) Kill() {
	c.lock.Lock()
	alreadyKilled := c.killed
	c.killed = true
	c.lock.Unlock()

	if alreadyKilled {
		return
	}

	c.logger.Infof("Client killed")
	c.conn.Abort(connection.ErrKilled)
}

// Read performs one long-poll cycle and blocks until the origin publishes
// something, the poll is interrupted, or the wire fails. Messages come back
// in publish order; with a cipher key configured each payload is the
// decrypted plaintext, otherwise the raw JSON encoding.
//
// Transport and framing failures leave the connection down and are worth a
// plain retry; the next Read reconnects on its own. A killed client fails
// immediately without touching the socket.
func (c *Client) Read(ctx context.Context) ([][]byte, error) {
	c.lock.Lock()
	if c.killed {
		c.lock.Unlock()
		return nil, connection.ErrKilled
	}
	if c.sub == nil {
		c.lock.Unlock()
		return nil, ErrNotSubscribed
	}
	sub := c.sub
	decrypter := c.decrypter
	timetoken := c.timetoken
	generation := c.generation
	c.lock.Unlock()

	request, err := longpoll.BuildSubscribeRequest(sub, timetoken, c.clientId)
	if err != nil {
		return nil, err
	}

	c.logger.Tracef("Polling [%s] from timetoken %d", sub.ChannelList(), timetoken)

	// Honor context cancellation with the same abort mechanism Kill uses:
	// tear the socket down underneath the blocked read.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Abort(ctx.Err())
		case <-watcherDone:
		}
	}()

	endpoint := transporter.Endpoint{
		Addr:       sub.Addr(),
		ServerName: sub.ServerName(),
		Secure:     sub.Secure,
	}

	var contentLength int
	if c.conn.State() == connection.Disconnected {
		contentLength, err = c.conn.EnsureConnected(ctx, endpoint, request)
	} else {
		contentLength, err = c.conn.SendRequest(request)
	}
	if err != nil {
		return nil, c.pollFailure(ctx, err)
	}

	body, err := c.conn.ReadBody(contentLength)
	if err != nil {
		return nil, c.pollFailure(ctx, err)
	}

	envelope, err := longpoll.ParseEnvelope(body)
	if err != nil {
		// The byte count added up but the content didn't; we can no longer
		// trust that we're aligned with the stream, so reconnect.
		malformed := &connection.MalformedResponseError{Err: err}
		c.conn.Abort(malformed)
		return nil, malformed
	}

	c.advanceTimetoken(generation, envelope.Timetoken)

	// A kill or a replacement subscription can land after the response has
	// fully arrived but before we hand it over, in which case the abort had
	// no blocked read left to interrupt. The messages belong to a poll the
	// caller already disowned, so they are not delivered.
	c.lock.Lock()
	killed := c.killed
	superseded := c.generation != generation
	c.lock.Unlock()

	if killed {
		return nil, connection.ErrKilled
	}
	if superseded {
		return nil, &connection.TransportError{Op: "poll", Err: errors.New("subscription replaced mid-poll")}
	}

	return c.unpack(decrypter, envelope.Messages)
}

// Timetoken is the current stream cursor, mainly useful for logging and
// tests.
func (c *Client) Timetoken() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.timetoken
}

// pollFailure rewrites wire errors that were really caused by an intentional
// interruption. The socket error a blocked read observes after Kill or a
// context cancellation is an artifact of the abort, not a network failure,
// and callers must be able to tell the difference.
func (c *Client) pollFailure(ctx context.Context, err error) error {
	c.lock.Lock()
	killed := c.killed
	c.lock.Unlock()

	if killed {
		return connection.ErrKilled
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// advanceTimetoken moves the cursor forward, but only for the subscription
// generation the poll started under. The cursor never moves backwards within
// one subscription.
func (c *Client) advanceTimetoken(generation uint64, timetoken int64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.generation == generation && timetoken > c.timetoken {
		c.timetoken = timetoken
	}
}

// unpack produces the caller-facing message batch, decrypting each payload
// into a fresh slice when a cipher is configured. Decryption failures do not
// touch the connection; the poll position has already advanced and the wire
// itself is healthy.
func (c *Client) unpack(decrypter *cipher.Cipher, raw []json.RawMessage) ([][]byte, error) {
	messages := make([][]byte, 0, len(raw))

	for i, message := range raw {
		if decrypter == nil {
			messages = append(messages, []byte(message))
			continue
		}

		var encoded string
		if err := json.Unmarshal(message, &encoded); err != nil {
			return nil, fmt.Errorf("%w: message %d is not a base64 string", cipher.ErrBadCiphertext, i)
		}

		plaintext, err := decrypter.Decrypt(encoded)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		messages = append(messages, plaintext)
	}

	return messages, nil
}
