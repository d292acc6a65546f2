package oas

import (
	"encoding/json"
	"net/http"

	"gopkg.in/yaml.v3"
)

// marshalSpec renders the document once in both formats. Map keys marshal
// in sorted order, so the output is deterministic across builds.
func marshalSpec(spec *OpenAPISpec) (specJSON, specYAML []byte, err error) {
	specJSON, err = json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	specJSON = append(specJSON, '\n')

	specYAML, err = yaml.Marshal(spec)
	if err != nil {
		return nil, nil, err
	}
	return specJSON, specYAML, nil
}

// specEndpoint builds the synthetic GET route that serves a rendered
// document. The route never appears in the document itself.
func specEndpoint(pattern, contentType string, body []byte) (*endpoint, error) {
	tpl, err := parsePathTemplate(pattern)
	if err != nil {
		return nil, err
	}
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		//nolint:errcheck,gosec // best-effort response write
		w.Write(body)
	})
	return &endpoint{
		method:   http.MethodGet,
		pattern:  pattern,
		template: tpl,
		handler:  h,
	}, nil
}
