package smalld

import (
	"os"
	"time"

	"github.com/smalld-go/smalld/internal/gateway"
	"github.com/smalld-go/smalld/internal/httpapi"
	"github.com/smalld-go/smalld/internal/intent"
	"github.com/smalld-go/smalld/internal/listener"
	"github.com/smalld-go/smalld/internal/session"
	"github.com/smalld-go/smalld/internal/xerror"
)

// version is reported in the REST client's User-Agent header.
const version = "0.1.0"

// Builder configures a Client before it is built. The zero value plus
// NewBuilder's defaults is enough to connect with a token from the
// SMALLD_TOKEN environment variable.
type Builder struct {
	// Token is the bot token used as the bearer identity for both REST
	// and the gateway. Required; missing is a Configuration error.
	Token string
	// BaseURL is the REST API base. Defaults to httpapi.DefaultBaseURL.
	BaseURL string
	// Intents is the gateway intents bitmask sent on Identify. NewBuilder
	// sets it to intent.Unprivileged; Build sends it as given, so a zero
	// value is an empty mask.
	Intents intent.Intent

	// RetryPause overrides the run loop's fixed pause between connect
	// attempts. Zero means the spec's 5 second default.
	RetryPause time.Duration
}

// NewBuilder returns a Builder pre-populated with the documented
// defaults: the SMALLD_TOKEN environment variable, Discord's v8 REST
// base, and the unprivileged intent set.
func NewBuilder() *Builder {
	return &Builder{
		Token:   os.Getenv("SMALLD_TOKEN"),
		BaseURL: httpapi.DefaultBaseURL,
		Intents: intent.Unprivileged,
	}
}

// Build constructs the HTTP client, gateway, listener registry, and
// session engine, registers the Heartbeat and Identify actors as
// listeners, and returns the assembled Client.
func (b *Builder) Build() (*Client, error) {
	if b.Token == "" {
		return nil, xerror.New(xerror.KindConfiguration, "no token configured (set Builder.Token or SMALLD_TOKEN)")
	}

	baseURL := b.BaseURL
	if baseURL == "" {
		baseURL = httpapi.DefaultBaseURL
	}

	httpClient, err := httpapi.New(b.Token, baseURL, version, nil)
	if err != nil {
		return nil, err
	}

	gw := gateway.New()
	registry := listener.New()

	heartbeat := session.NewHeartbeat(nil)
	identify := session.NewIdentify(b.Token, b.Intents, nil)
	registry.Add(heartbeat.Listener())
	registry.Add(identify.Listener())

	engine := session.NewEngine(httpClient, gw, registry, identify, b.RetryPause, nil)

	client := &Client{
		http:   httpClient,
		engine: engine,
		events: registry,
	}
	engine.SetHandle(client)

	return client, nil
}
