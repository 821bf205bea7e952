package a2a

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// AgentProvider identifies the organization that operates an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities advertises optional protocol features a server supports.
type AgentCapabilities struct {
	Streaming              bool     `json:"streaming"`
	PushNotifications      bool     `json:"pushNotifications"`
	StateTransitionHistory bool     `json:"stateTransitionHistory"`
	Extensions             []string `json:"extensions,omitempty"`
}

// AgentSkill is one capability an agent advertises in its card.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// SecuritySchemeType enumerates the kinds of schemes a card may declare.
type SecuritySchemeType string

const (
	SecuritySchemeAPIKey        SecuritySchemeType = "apiKey"
	SecuritySchemeHTTP          SecuritySchemeType = "http"
	SecuritySchemeOAuth2        SecuritySchemeType = "oauth2"
	SecuritySchemeOpenIDConnect SecuritySchemeType = "openIdConnect"
	SecuritySchemeMutualTLS     SecuritySchemeType = "mutualTLS"
)

// SecurityScheme describes one authentication mechanism a server accepts.
type SecurityScheme struct {
	Type             SecuritySchemeType `json:"type"`
	Description      string             `json:"description,omitempty"`
	Name             string             `json:"name,omitempty"`   // apiKey
	In               string             `json:"in,omitempty"`     // apiKey: header|query|cookie
	Scheme           string             `json:"scheme,omitempty"` // http: bearer|basic
	BearerFormat     string             `json:"bearerFormat,omitempty"`
	OpenIDConnectURL string             `json:"openIdConnectUrl,omitempty"`
}

// AgentCardSignature is a detached JWS over the card's canonical JSON form.
type AgentCardSignature struct {
	Protected string         `json:"protected"`
	Signature string         `json:"signature"`
	Header    map[string]any `json:"header,omitempty"`
}

// AgentCard is the self-description a server publishes at
// /.well-known/agent-card.json.
type AgentCard struct {
	Name                              string                    `json:"name"`
	Description                       string                    `json:"description"`
	URL                               string                    `json:"url"`
	PreferredTransport                string                    `json:"preferredTransport,omitempty"`
	AdditionalInterfaces              []AgentInterface          `json:"additionalInterfaces,omitempty"`
	Provider                          *AgentProvider            `json:"provider,omitempty"`
	Version                           string                    `json:"version"`
	DocumentationURL                  string                    `json:"documentationUrl,omitempty"`
	Capabilities                      AgentCapabilities         `json:"capabilities"`
	SecuritySchemes                   map[string]SecurityScheme `json:"securitySchemes,omitempty"`
	Security                          []map[string][]string     `json:"security,omitempty"`
	DefaultInputModes                 []string                  `json:"defaultInputModes"`
	DefaultOutputModes                []string                  `json:"defaultOutputModes"`
	Skills                            []AgentSkill              `json:"skills"`
	SupportsAuthenticatedExtendedCard bool                      `json:"supportsAuthenticatedExtendedCard,omitempty"`
	Signatures                        []AgentCardSignature      `json:"signatures,omitempty"`
}

// AgentInterface names a transport+url pair the agent also answers on.
type AgentInterface struct {
	URL       string `json:"url"`
	Transport string `json:"transport"`
}

// String renders a short, human-readable summary for CLI output.
func (c AgentCard) String() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	return fmt.Sprintf("%s %s\n%s\n%d skill(s), streaming=%v",
		title.Render(c.Name), dim.Render(c.Version), c.Description,
		len(c.Skills), c.Capabilities.Streaming)
}
