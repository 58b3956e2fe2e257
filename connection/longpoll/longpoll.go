/*
The longpoll package is the protocol handler for the subscribe wire protocol.
It knows how to render the long-poll request line, how to frame the
HTTP-shaped response that comes back (header terminator, declared body
length), and how to decode the [messages, timetoken] envelope in the body.
It owns no socket; the connection manager hands it an io.Reader and collects
the results.

The request layout is fixed by the remote service and is reproduced
byte-exactly, including quirks like the reserved zero path segment and an
auth parameter that is sent even when empty.
*/
package longpoll

import (
	"fmt"
	"strings"

	"github.com/pnlite/pnlite/subscription"
)

const (
	crlf             = "\r\n"
	headerTerminator = "\r\n\r\n"
)

// BuildSubscribeRequest renders the request for one poll cycle from the
// subscription parameters, the last-seen timetoken, and the per-client
// instance id. Validation failures are caller errors, never fixable by
// retrying.
func BuildSubscribeRequest(sub *subscription.Subscription, timetoken int64, clientId string) ([]byte, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	// The third path segment is reserved by the wire protocol and always 0
	headers := []string{
		fmt.Sprintf("GET /subscribe/%s/%s/0/%d?uuid=%s&auth=%s HTTP/1.1",
			sub.SubscribeKey, sub.ChannelList(), timetoken, clientId, sub.AuthKey),
		"Accept-Encoding: identity",
		fmt.Sprintf("Host: %s", sub.Host()),
		"Connection: keep-alive",
	}

	return []byte(strings.Join(headers, crlf) + headerTerminator), nil
}
