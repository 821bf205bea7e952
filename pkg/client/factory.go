package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/auth"
)

// headerFuncFromIntercept adapts a *http.Request-shaped intercept hook
// (the shape pkg/jsonrpc.RPCClient expects) into the ctx-based
// map[string]string shape RESTTransport expects, by running the intercept
// against a scratch request and reading back whatever headers it set —
// letting both HTTP transports share one auth-resolution path
// (ClientFactory.httpIntercept) instead of each wiring credentials
// independently.
func headerFuncFromIntercept(url string, intercept func(*http.Request) error) func(ctx context.Context) map[string]string {
	if intercept == nil {
		return nil
	}
	return func(ctx context.Context) map[string]string {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return nil
		}
		if err := intercept(req); err != nil {
			return nil
		}
		headers := make(map[string]string, len(req.Header))
		for k := range req.Header {
			headers[k] = req.Header.Get(k)
		}
		return headers
	}
}

// TransportProducer builds a ClientTransport bound to a specific URL. One
// producer is registered per transport name ("jsonrpc", "rest", "grpc",
// "stdio"); the registry is an explicit object rather than a package-level
// init()-populated map, so a process can run multiple independently
// configured factories side by side.
type TransportProducer func(url string, intercept func(*http.Request) error) (ClientTransport, error)

// TransportRegistry holds the known transport producers by name.
type TransportRegistry struct {
	producers map[string]TransportProducer
}

func NewTransportRegistry() *TransportRegistry {
	return &TransportRegistry{producers: make(map[string]TransportProducer)}
}

func (r *TransportRegistry) Register(name string, producer TransportProducer) {
	r.producers[name] = producer
}

func (r *TransportRegistry) lookup(name string) (TransportProducer, bool) {
	p, ok := r.producers[name]
	return p, ok
}

// DefaultTransportRegistry wires up the jsonrpc, rest and grpc transports. REST and
// gRPC URLs/targets are passed straight through to their producers; stdio
// is registered separately by callers that need subprocess agents, since
// it has no URL to dial.
func DefaultTransportRegistry() *TransportRegistry {
	r := NewTransportRegistry()
	r.Register("jsonrpc", func(url string, intercept func(*http.Request) error) (ClientTransport, error) {
		return NewJSONRPCTransport(url, nil, intercept), nil
	})
	r.Register("rest", func(url string, intercept func(*http.Request) error) (ClientTransport, error) {
		return NewRESTTransport(url, headerFuncFromIntercept(url, intercept)), nil
	})
	r.Register("grpc", func(url string, intercept func(*http.Request) error) (ClientTransport, error) {
		return NewGRPCTransport(url)
	})
	return r
}

// ClientFactory negotiates a transport between an AgentCard's advertised
// interfaces and a caller's ClientConfig, then builds a BaseClient.
type ClientFactory struct {
	registry    *TransportRegistry
	config      ClientConfig
	consumers   []Consumer
	interceptor Interceptor

	// Auth, when set, resolves per-scheme credentials for every card this
	// factory builds a client against; SessionID keys the
	// CredentialProvider lookup (e.g. a logged-in user's session id).
	Auth      *auth.Interceptor
	SessionID string
}

func NewClientFactory(registry *TransportRegistry, cfg ClientConfig, consumers []Consumer, interceptor Interceptor) *ClientFactory {
	return &ClientFactory{registry: registry, config: cfg, consumers: consumers, interceptor: interceptor}
}

type transportCandidate struct {
	transport string
	url       string
}

// negotiate picks the (transport, url) pair: server
// candidates in card insertion order (preferred transport first, then
// additional interfaces), client candidates from config.SupportedTransports
// (defaulting to ["jsonrpc"]). UseClientPreference flips which side drives
// the iteration order.
func negotiate(card *a2a.AgentCard, cfg ClientConfig) (transportCandidate, error) {
	server := []transportCandidate{{transport: card.PreferredTransport, url: card.URL}}
	for _, iface := range card.AdditionalInterfaces {
		server = append(server, transportCandidate{transport: iface.Transport, url: iface.URL})
	}

	clientPrefs := cfg.SupportedTransports
	if len(clientPrefs) == 0 {
		clientPrefs = []string{"jsonrpc"}
	}

	inClient := func(name string) bool {
		for _, c := range clientPrefs {
			if c == name {
				return true
			}
		}
		return false
	}
	inServer := func(name string) (transportCandidate, bool) {
		for _, s := range server {
			if s.transport == name {
				return s, true
			}
		}
		return transportCandidate{}, false
	}

	if cfg.UseClientPreference {
		for _, name := range clientPrefs {
			if s, ok := inServer(name); ok {
				return s, nil
			}
		}
	} else {
		for _, s := range server {
			if inClient(s.transport) {
				return s, nil
			}
		}
	}

	return transportCandidate{}, fmt.Errorf("no compatible transports found")
}

// consumersFor concatenates the factory's consumers with call-site
// consumers, factory first.
func (f *ClientFactory) consumersFor(callSite []Consumer) []Consumer {
	if len(callSite) == 0 {
		return f.consumers
	}
	combined := make([]Consumer, 0, len(f.consumers)+len(callSite))
	combined = append(combined, f.consumers...)
	combined = append(combined, callSite...)
	return combined
}

// Create negotiates a transport for card and returns a ready BaseClient.
func (f *ClientFactory) Create(card *a2a.AgentCard, callSiteConsumers ...Consumer) (*BaseClient, error) {
	candidate, err := negotiate(card, f.config)
	if err != nil {
		return nil, err
	}

	producer, ok := f.registry.lookup(candidate.transport)
	if !ok {
		return nil, fmt.Errorf("no transport producer registered for %q", candidate.transport)
	}

	transport, err := producer(candidate.url, f.httpIntercept(card))
	if err != nil {
		return nil, err
	}

	return NewBaseClient(transport, card, f.config, f.consumersFor(callSiteConsumers), f.interceptor), nil
}

// httpIntercept builds the *http.Request mutator the jsonrpc and (via
// headerFuncFromIntercept) rest transports use to attach credentials,
// resolving them against card's declared security schemes through
// f.Auth. Nil when no Auth is configured for this factory.
func (f *ClientFactory) httpIntercept(card *a2a.AgentCard) func(*http.Request) error {
	if f.Auth == nil {
		return nil
	}
	return func(req *http.Request) error {
		return f.Auth.Apply(req, card, f.SessionID)
	}
}
