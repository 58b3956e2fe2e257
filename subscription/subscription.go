/*
Package subscription holds the parameters of one logical subscription. A
Subscription is immutable once handed to the client; changing anything means
handing the client a whole new Subscription.
*/
package subscription

import (
	"fmt"
	"net"
	"strings"
)

const (
	// DefaultOrigin is the production pub/sub endpoint
	DefaultOrigin = "pubsub.pubnub.com"

	PlainPort  = "80"
	SecurePort = "443"
)

type Subscription struct {
	// SubscribeKey identifies the tenant account the channels belong to
	SubscribeKey string

	// Channels is the ordered channel set, serialized comma-joined on the wire
	Channels []string

	// AuthKey is the per-subscription authorization credential, opaque to this
	// client. It is sent even when empty because the wire template always
	// carries the auth parameter
	AuthKey string

	// CipherKey enables per-message decryption when set
	CipherKey string

	// Secure selects TLS on the secure port instead of plain TCP
	Secure bool

	// Origin overrides the production host, e.g. to point tests at a local
	// mock origin. May carry an explicit port. Empty means DefaultOrigin
	Origin string
}

func (s *Subscription) Validate() error {
	if s.SubscribeKey == "" {
		return fmt.Errorf("subscription has no subscribe key")
	}

	if len(s.Channels) == 0 {
		return fmt.Errorf("subscription has no channels")
	}

	// Commas delimit channels inside the subscribe path and spaces are not
	// path-legal, so neither can appear in a channel name
	for _, channel := range s.Channels {
		if channel == "" || strings.ContainsAny(channel, ", ") {
			return fmt.Errorf("invalid channel name: %q", channel)
		}
	}

	return nil
}

// ChannelList returns the comma-joined channel set exactly as it appears in
// the subscribe path.
func (s *Subscription) ChannelList() string {
	return strings.Join(s.Channels, ",")
}

// Host is the value of the request's Host header.
func (s *Subscription) Host() string {
	if s.Origin != "" {
		return s.Origin
	}
	return DefaultOrigin
}

// Addr is the dial address, defaulting the port from the transport mode when
// the origin doesn't carry one.
func (s *Subscription) Addr() string {
	host := s.Host()
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	if s.Secure {
		return net.JoinHostPort(host, SecurePort)
	}
	return net.JoinHostPort(host, PlainPort)
}

// ServerName is the TLS SNI value: the origin host without any port.
func (s *Subscription) ServerName() string {
	host := s.Host()
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
