package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/tomb.v2"

	"github.com/pnlite/pnlite/connection"
	"github.com/pnlite/pnlite/logger"
)

var maxRetryInterval = 15 * time.Minute

// How long the listener keeps retrying a dead origin before giving up
const maximumRetryTime = 1 * time.Hour

// Listener runs the Read loop on the caller's behalf: it owns the dedicated
// polling goroutine, retries transport failures with exponential backoff, and
// fans messages out over a channel. Use it when you want a pump; call
// Client.Read yourself when you want control.
type Listener struct {
	tmb    tomb.Tomb
	logger *logger.Logger
	client *Client

	// Received messages
	inbound chan []byte
}

func Listen(logger *logger.Logger, client *Client) *Listener {
	listener := &Listener{
		logger:  logger,
		client:  client,
		inbound: make(chan []byte, 200),
	}

	listener.tmb.Go(listener.pump)

	return listener
}

func (l *Listener) Inbound() <-chan []byte {
	return l.inbound
}

func (l *Listener) Done() <-chan struct{} {
	return l.tmb.Dead()
}

func (l *Listener) Err() error {
	return l.tmb.Err()
}

func (l *Listener) Close(reason error) {
	if l.tmb.Alive() {
		l.logger.Infof("Listener closing because: %s", reason)

		// kill the client first so a blocked poll is released
		l.client.Kill()

		l.tmb.Kill(reason)
		l.tmb.Wait()
	} else {
		l.logger.Infof("Close was called while in a dying state")
	}
}

func (l *Listener) pump() error {
	l.logger.Infof("Listener has started")
	defer l.logger.Infof("Listener has stopped")

	backoffParams := backoff.NewExponentialBackOff()
	backoffParams.MaxInterval = maxRetryInterval
	backoffParams.MaxElapsedTime = maximumRetryTime

	for {
		if !l.tmb.Alive() {
			return nil
		}

		messages, err := l.client.Read(context.Background())

		switch {
		case err == nil:
			backoffParams.Reset()
			if done := l.forward(messages); done {
				return nil
			}

		case errors.Is(err, connection.ErrKilled):
			// an orderly stop, ours or somebody else's
			return nil

		case errors.Is(err, ErrNotSubscribed):
			return err

		case isReconnectWorthy(err):
			if retryErr := l.waitToRetry(backoffParams, err); retryErr != nil {
				return retryErr
			}

		default:
			// bad payloads are not worth dying over, the channel itself
			// is still healthy
			l.logger.Errorf("Dropped a poll's messages: %s", err)
		}
	}
}

func (l *Listener) forward(messages [][]byte) bool {
	for _, message := range messages {
		select {
		case l.inbound <- message:
		case <-l.tmb.Dying():
			return true
		}
	}
	return false
}

func (l *Listener) waitToRetry(backoffParams *backoff.ExponentialBackOff, cause error) error {
	wait := backoffParams.NextBackOff()
	if wait == backoff.Stop {
		return fmt.Errorf("giving up after retrying for %s: %w", maximumRetryTime, cause)
	}

	l.logger.Infof("Retrying in %s because the poll failed: %s", wait.Round(time.Second), cause)

	select {
	case <-time.After(wait):
		return nil
	case <-l.tmb.Dying():
		return nil
	}
}

func isReconnectWorthy(err error) bool {
	var transportErr *connection.TransportError
	var malformedErr *connection.MalformedResponseError
	return errors.As(err, &transportErr) || errors.As(err, &malformedErr)
}
