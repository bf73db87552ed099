package assist

import (
	"context"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

// geminiProvider uses the Google GenAI SDK against the Gemini API backend and
// constrains the output with a response schema.
type geminiProvider struct {
	httpClient *http.Client
	client     *genai.Client
	apiKey     string
	model      string
	mu         sync.Mutex
}

func (g *geminiProvider) Name() string {
	return ProviderGemini + "/" + g.model
}

func (g *geminiProvider) getOrCreateClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     g.apiKey,
		HTTPClient: g.httpClient,
	})
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

func (g *geminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	client, err := g.getOrCreateClient(ctx)
	if err != nil {
		return "", upstream(g.Name(), 0, "creating client", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   clusterSchema(),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", upstream(g.Name(), 0, "generating content", err)
	}
	return resp.Text(), nil
}

func clusterSchema() *genai.Schema {
	stringList := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"clusters": {
				Type:     genai.TypeArray,
				MaxItems: genai.Ptr[int64](MaxGroups),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"label":     {Type: genai.TypeString},
						"memberIds": stringList,
						"examples":  stringList,
					},
					Required: []string{"label", "memberIds"},
				},
			},
		},
		Required: []string{"clusters"},
	}
}
