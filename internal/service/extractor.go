package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"property-agent/internal/config"
	"property-agent/internal/logger"
	"property-agent/internal/utils"
)

var (
	// ErrInvalidExtraction means the extraction service answered, but not with a JSON object.
	ErrInvalidExtraction = errors.New("extraction result is not a JSON object")
	// ErrExtractionFailed means the extraction service could not be reached or refused the call.
	ErrExtractionFailed = errors.New("extraction service call failed")
)

// Extractor turns a free-text message into a raw key/value mapping. Keys and
// value encodings are whatever the service produced; see Normalizer.
type Extractor interface {
	Extract(ctx context.Context, text string) (map[string]any, error)
}

const extractionSystemPrompt = `Eres un asistente inmobiliario. Extrae del mensaje del usuario los filtros de búsqueda de propiedades.

Claves posibles (omite las que no se mencionen):
- district: distrito o zona (texto)
- min_area: área mínima en m² (número)
- status: estado de la propiedad, uno de "AVAILABLE", "OCCUPIED", "MAINTENANCE", "SOLD"
- max_budget: presupuesto máximo (número)
- bedrooms: número de dormitorios (entero)
- pet_friendly: acepta mascotas (booleano)
- balcony: tiene balcón (booleano)
- terrace: tiene terraza (booleano)
- furnished: amoblado (booleano)
- bathrooms: número de baños (entero)

Reglas:
- Responde SOLO con un objeto JSON válido
- Si el mensaje no contiene filtros, responde {}
- "250 mil" = 250000, "1.2 millones" = 1200000

Ejemplos:
Mensaje: "Busco en San Isidro 2 dormitorios"
Respuesta: {"district": "San Isidro", "bedrooms": 2}

Mensaje: "Que tenga al menos 80 metros y acepte mascotas"
Respuesta: {"min_area": 80, "pet_friendly": true}`

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage represents a single message sent to the extraction model
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat specifies the format of the response
type ResponseFormat struct {
	Type string `json:"type"` // "json_object" or "text"
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIExtractor extracts filters through an OpenAI-compatible chat completion API
type OpenAIExtractor struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
	log        logger.Logger
}

// NewOpenAIExtractor creates an extractor for the configured API base and model
func NewOpenAIExtractor(cfg *config.OpenAIConfig, log logger.Logger) *OpenAIExtractor {
	return &OpenAIExtractor{
		config: cfg,
		log:    log,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Extract asks the model for the filters mentioned in text
func (c *OpenAIExtractor) Extract(ctx context.Context, text string) (map[string]any, error) {
	req := ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature:    c.config.Temperature,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrInvalidExtraction)
	}

	content := resp.Choices[0].Message.Content
	raw, err := utils.ParseAIObject(content)
	if err != nil {
		c.log.Warn("extraction content is not a JSON object", map[string]interface{}{
			"content": content,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrInvalidExtraction, err)
	}

	c.log.Debug("extraction completed", map[string]interface{}{
		"keys":   len(raw),
		"model":  resp.Model,
		"tokens": resp.Usage.TotalTokens,
	})
	return raw, nil
}

// ChatCompletion performs a chat completion request
func (c *OpenAIExtractor) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.config.APIBase)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %w", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrExtractionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API request failed with status %d: %s", ErrExtractionFailed, resp.StatusCode, string(body))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %w", ErrInvalidExtraction, err)
	}

	return &result, nil
}
