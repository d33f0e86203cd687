// Package stub joins the codec and the transport into a link to one
// deployed stub. A Link is what terminal sessions and probes talk to.
package stub

import (
	"context"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/charset"
	"go.uber.org/zap"
)

// Link sends scripts to one stub URL.
type Link struct {
	url      string
	codec    *codec.Codec
	client   *client.Client
	encoding string
	logger   *logging.Logger
}

// NewLink builds a link. encoding names the charset of the remote shell's
// output; empty means UTF-8.
func NewLink(url string, c *codec.Codec, transport *client.Client, encoding string, logger *logging.Logger) *Link {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Link{
		url:      url,
		codec:    c,
		client:   transport,
		encoding: charset.Canonical(encoding),
		logger:   logger,
	}
}

// URL returns the stub location.
func (l *Link) URL() string {
	return l.url
}

// Do performs one exchange and classifies the outcome.
func (l *Link) Do(ctx context.Context, script string) codec.Result {
	body, err := l.codec.EncodeRequest(string(charset.FromUTF8([]byte(script), l.encoding)))
	if err != nil {
		// Only an aes step with a bad key can fail here.
		return codec.Result{Kind: codec.KindMalformed, Err: err}
	}

	start := time.Now()
	raw, sendErr := l.client.Send(ctx, l.url, body)
	result := l.codec.Classify(raw, sendErr)

	if result.Kind == codec.KindOutput {
		result.Response.Output = charset.ToUTF8(result.Response.Output, l.encoding)
	} else {
		l.logger.Debug("stub exchange unsuccessful",
			zap.String("url", l.url),
			zap.Stringer("kind", result.Kind),
			zap.Duration("duration", time.Since(start)),
			zap.Error(result.Err))
	}
	return result
}

// Exchange runs script and returns its decoded output. Errors are the
// transport's *client.TransportError, the codec's
// *codec.MalformedResponseError or a *cipher.CryptoError, unchanged.
func (l *Link) Exchange(ctx context.Context, script string) ([]byte, error) {
	return l.Do(ctx, script).Output()
}
