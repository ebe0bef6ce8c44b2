package http

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML embed.FS

var (
	openAPIJSON     []byte
	openAPIJSONOnce sync.Once
	openAPIJSONErr  error
)

// getOpenAPIJSON returns the OpenAPI document as JSON, converted once.
func getOpenAPIJSON() ([]byte, error) {
	openAPIJSONOnce.Do(func() {
		openAPIJSON, openAPIJSONErr = convertOpenAPIToJSON()
	})
	return openAPIJSON, openAPIJSONErr
}

func convertOpenAPIToJSON() ([]byte, error) {
	yamlData, err := openAPIYAML.ReadFile("openapi.yaml")
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return nil, fmt.Errorf("parsing openapi.yaml: %w", err)
	}

	return json.MarshalIndent(convertYAMLToJSON(doc), "", "  ")
}

// convertYAMLToJSON turns map[any]any nodes into string-keyed maps.
func convertYAMLToJSON(v any) any {
	switch v := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = convertYAMLToJSON(value)
		}
		return result
	case map[any]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[fmt.Sprint(key)] = convertYAMLToJSON(value)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, value := range v {
			result[i] = convertYAMLToJSON(value)
		}
		return result
	default:
		return v
	}
}

// handleOpenAPI returns the OpenAPI document.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to load OpenAPI document", "error", err)
		s.writeError(w, http.StatusInternalServerError, CodeInternal, "failed to load OpenAPI document", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}
