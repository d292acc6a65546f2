package oas

// SecurityScheme describes one way an API authenticates callers. Schemes
// are declared on the router by name and referenced from routes with
// WithSecurity; referencing an undeclared name is a build error.
type SecurityScheme struct {
	Type             string            `json:"type" yaml:"type"`
	Description      string            `json:"description,omitempty" yaml:"description,omitempty"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	In               string            `json:"in,omitempty" yaml:"in,omitempty"`
	Scheme           string            `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat     string            `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
	Flows            *OAuthFlows       `json:"flows,omitempty" yaml:"flows,omitempty"`
	OpenIDConnectURL string            `json:"openIdConnectUrl,omitempty" yaml:"openIdConnectUrl,omitempty"`
}

// OAuthFlows holds the flow objects a scheme supports.
type OAuthFlows struct {
	Implicit          *OAuthFlow `json:"implicit,omitempty" yaml:"implicit,omitempty"`
	Password          *OAuthFlow `json:"password,omitempty" yaml:"password,omitempty"`
	ClientCredentials *OAuthFlow `json:"clientCredentials,omitempty" yaml:"clientCredentials,omitempty"`
	AuthorizationCode *OAuthFlow `json:"authorizationCode,omitempty" yaml:"authorizationCode,omitempty"`
}

// OAuthFlow is one OAuth2 flow's endpoints and scopes.
type OAuthFlow struct {
	AuthorizationURL string            `json:"authorizationUrl,omitempty" yaml:"authorizationUrl,omitempty"`
	TokenURL         string            `json:"tokenUrl,omitempty" yaml:"tokenUrl,omitempty"`
	RefreshURL       string            `json:"refreshUrl,omitempty" yaml:"refreshUrl,omitempty"`
	Scopes           map[string]string `json:"scopes" yaml:"scopes"`
}

// SecurityRequirement maps scheme names to the scopes a request needs.
// An empty scope list means the scheme applies without scopes.
type SecurityRequirement map[string][]string

// APIKeyAuth declares an API key scheme. in is "query", "header", or
// "cookie"; name is the parameter or header carrying the key.
func APIKeyAuth(name, in string) SecurityScheme {
	return SecurityScheme{Type: "apiKey", Name: name, In: in}
}

// BasicAuth declares an HTTP basic authentication scheme.
func BasicAuth() SecurityScheme {
	return SecurityScheme{Type: "http", Scheme: "basic"}
}

// BearerAuth declares an HTTP bearer token scheme. format documents the
// token format, commonly "JWT"; it may be empty.
func BearerAuth(format string) SecurityScheme {
	return SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: format}
}

// OAuth2 declares an OAuth2 scheme with the given flows.
func OAuth2(flows OAuthFlows) SecurityScheme {
	return SecurityScheme{Type: "oauth2", Flows: &flows}
}

// OpenIDConnect declares an OpenID Connect scheme discovered from url.
func OpenIDConnect(url string) SecurityScheme {
	return SecurityScheme{Type: "openIdConnect", OpenIDConnectURL: url}
}
