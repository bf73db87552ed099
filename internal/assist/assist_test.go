package assist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/feudsurvey/pkg/models"
	"github.com/thebtf/feudsurvey/pkg/similarity"
)

func sample(texts ...string) []models.RawResponse {
	out := make([]models.RawResponse, len(texts))
	for i, text := range texts {
		out[i] = models.RawResponse{ID: fmt.Sprintf("r%d", i+1), Text: text}
	}
	return out
}

// chatEnvelope wraps content the way an OpenAI-compatible service does.
func chatEnvelope(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

type capturedRequest struct {
	Header http.Header
	Query  string
	Path   string
	Body   chatRequest
}

type AdapterSuite struct {
	suite.Suite
	server   *httptest.Server
	calls    atomic.Int32
	last     capturedRequest
	status   int
	response string
}

func TestAdapterSuite(t *testing.T) {
	suite.Run(t, new(AdapterSuite))
}

func (s *AdapterSuite) SetupTest() {
	s.calls.Store(0)
	s.status = http.StatusOK
	s.response = chatEnvelope(`{"clusters":[]}`)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		s.last = capturedRequest{Header: r.Header.Clone(), Path: r.URL.Path, Query: r.URL.RawQuery}
		_ = json.Unmarshal(body, &s.last.Body)
		w.WriteHeader(s.status)
		_, _ = io.WriteString(w, s.response)
	}))
}

func (s *AdapterSuite) TearDownTest() {
	s.server.Close()
}

func (s *AdapterSuite) openAI() *Adapter {
	return FromConfig(Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: s.server.URL + "/"})
}

func (s *AdapterSuite) prompt() promptPayload {
	s.Require().Len(s.last.Body.Messages, 2)
	var p promptPayload
	s.Require().NoError(json.Unmarshal([]byte(s.last.Body.Messages[1].Content), &p))
	return p
}

func (s *AdapterSuite) TestOpenAIRequestShape() {
	rules := models.NewSynonymRuleSet(models.SynonymRule{From: "kitty", To: "cat"})
	_, err := s.openAI().Cluster(context.Background(), "Name a pet", rules, sample("cat", "dog"))
	s.Require().NoError(err)

	s.Equal("/v1/chat/completions", s.last.Path)
	s.Equal("Bearer sk-test", s.last.Header.Get("Authorization"))
	s.Equal(defaultOpenAIModel, s.last.Body.Model)
	s.InDelta(0.2, s.last.Body.Temperature, 1e-9)
	s.Require().NotNil(s.last.Body.ResponseFormat)
	s.Equal("json_object", s.last.Body.ResponseFormat.Type)
	s.Equal("system", s.last.Body.Messages[0].Role)

	p := s.prompt()
	s.Equal("Name a pet", p.Question)
	s.Equal(map[string]string{"kitty": "cat"}, p.Synonyms)
	s.Equal([]Item{{ID: "r1", Text: "cat"}, {ID: "r2", Text: "dog"}}, p.Answers)
	s.Contains(p.Instructions, "at most 20 clusters")
}

func (s *AdapterSuite) TestAzureRequestShape() {
	a := FromConfig(Config{
		Provider:        "azure",
		AzureAPIKey:     "az-key",
		AzureEndpoint:   s.server.URL + "/",
		AzureDeployment: "my deploy",
	})
	_, err := a.Cluster(context.Background(), "q", models.SynonymRuleSet{}, sample("cat"))
	s.Require().NoError(err)

	s.Equal("/openai/deployments/my deploy/chat/completions", s.last.Path)
	s.Equal("api-version="+defaultAzureAPIVersion, s.last.Query)
	s.Equal("az-key", s.last.Header.Get("api-key"))
	s.Empty(s.last.Header.Get("Authorization"))
	s.Empty(s.last.Body.Model)
}

func (s *AdapterSuite) TestBatchCapAndTruncation() {
	texts := make([]string, 600)
	for i := range texts {
		texts[i] = strings.Repeat("é", 130)
	}
	responses := sample(texts...)
	s.response = chatEnvelope(`{"clusters":[{"label":"accents","memberIds":["r1","r2","r600"]}]}`)

	clusters, err := s.openAI().Cluster(context.Background(), "q", models.SynonymRuleSet{}, responses)
	s.Require().NoError(err)

	p := s.prompt()
	s.Len(p.Answers, MaxBatch)
	s.Equal("r1", p.Answers[0].ID)
	s.Equal("r500", p.Answers[MaxBatch-1].ID)
	s.Equal(MaxItemRunes, len([]rune(p.Answers[0].Text)))

	// r600 was never submitted; the percentage uses the full total.
	s.Require().Len(clusters, 1)
	s.Equal([]string{"r1", "r2"}, clusters[0].Members)
	s.Equal(2, clusters[0].Count)
	s.Equal(0, clusters[0].Percentage)
}

func (s *AdapterSuite) TestValidatedClusters() {
	s.response = chatEnvelope(`{"clusters":[
		{"label":"Cat","memberIds":["r1","r3","ghost"],"examples":["cat","CAT",""]},
		{"label":"Dog","memberIds":["r2","r3"]},
		{"label":"Fish","members":["r4"]}
	]}`)
	clusters, err := s.openAI().Cluster(context.Background(), "q", models.SynonymRuleSet{}, sample("cat", "dog", "Cat!", "fish"))
	s.Require().NoError(err)
	s.Require().Len(clusters, 3)

	s.Equal("Cat", clusters[0].Label)
	s.Equal([]string{"r1", "r3"}, clusters[0].Members)
	s.Equal([]string{"cat", "CAT"}, clusters[0].Examples)
	s.Equal(50, clusters[0].Percentage)

	s.Equal("Dog", clusters[1].Label)
	s.Equal([]string{"r2"}, clusters[1].Members, "r3 already claimed")
	s.Equal([]string{"dog"}, clusters[1].Examples)

	s.Equal("Fish", clusters[2].Label)
	s.Equal([]string{"r4"}, clusters[2].Members)
	s.Equal(25, clusters[2].Percentage)
}

func (s *AdapterSuite) TestFailureKinds() {
	tests := []struct {
		name     string
		status   int
		response string
		want     error
	}{
		{name: "upstream status", status: http.StatusInternalServerError, response: `{"error":"boom"}`, want: ErrUpstream},
		{name: "rate limited", status: http.StatusTooManyRequests, response: `slow down`, want: ErrUpstream},
		{name: "content not json", status: http.StatusOK, response: chatEnvelope("here are your clusters"), want: ErrParse},
		{name: "missing clusters", status: http.StatusOK, response: chatEnvelope(`{"groups":[]}`), want: ErrValidation},
		{name: "clusters not array", status: http.StatusOK, response: chatEnvelope(`{"clusters":"cat"}`), want: ErrValidation},
		{name: "payload is array", status: http.StatusOK, response: chatEnvelope(`[1,2]`), want: ErrValidation},
		{name: "entry not object", status: http.StatusOK, response: chatEnvelope(`{"clusters":["cat"]}`), want: ErrValidation},
		{name: "raw body without envelope", status: http.StatusOK, response: `{"id":"x"}`, want: ErrValidation},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.status = tt.status
			s.response = tt.response

			_, err := s.openAI().Cluster(context.Background(), "q", models.SynonymRuleSet{}, sample("cat"))
			s.Require().Error(err)
			s.True(errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func (s *AdapterSuite) TestUpstreamErrorCarriesStatus() {
	s.status = http.StatusBadGateway
	s.response = "bad gateway"
	_, err := s.openAI().Cluster(context.Background(), "q", models.SynonymRuleSet{}, sample("cat"))

	var ae *Error
	s.Require().True(errors.As(err, &ae))
	s.Equal(KindUpstream, ae.Kind)
	s.Equal(http.StatusBadGateway, ae.StatusCode)
	s.Contains(ae.Error(), "bad gateway")
}

func (s *AdapterSuite) TestRunAssisted() {
	s.response = chatEnvelope(`{"clusters":[{"label":"pets","memberIds":["r1","r2"]}]}`)
	res := s.openAI().Run(context.Background(), "q", models.SynonymRuleSet{}, sample("cat", "dog"))
	s.Equal(models.SourceAssisted, res.Source)
	s.NoError(res.Failure)
	s.Require().Len(res.Clusters, 1)
	s.Equal(100, res.Clusters[0].Percentage)
}

func (s *AdapterSuite) TestRunEmptySkipsService() {
	res := s.openAI().Run(context.Background(), "q", models.SynonymRuleSet{}, nil)
	s.Equal(int32(0), s.calls.Load())
	s.NoError(res.Failure)
	s.NotNil(res.Clusters)
	s.Empty(res.Clusters)
}

type stubProvider struct {
	content string
	err     error
	calls   int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(context.Context, Request) (string, error) {
	p.calls++
	return p.content, p.err
}

func TestRunFallsBackToLocal(t *testing.T) {
	rules := models.NewSynonymRuleSet(models.SynonymRule{From: "kitty", To: "cat"})
	responses := sample("cat", "kitty", "dog", "cats", "black cat")

	tests := []struct {
		name    string
		adapter func() (*Adapter, *stubProvider)
		want    error
	}{
		{
			name: "not configured",
			adapter: func() (*Adapter, *stubProvider) {
				return FromConfig(Config{}), nil
			},
			want: ErrNotConfigured,
		},
		{
			name: "upstream",
			adapter: func() (*Adapter, *stubProvider) {
				p := &stubProvider{err: upstream("stub", http.StatusInternalServerError, "boom", nil)}
				return New(p), p
			},
			want: ErrUpstream,
		},
		{
			name: "parse",
			adapter: func() (*Adapter, *stubProvider) {
				p := &stubProvider{content: "not json"}
				return New(p), p
			},
			want: ErrParse,
		},
		{
			name: "validation",
			adapter: func() (*Adapter, *stubProvider) {
				p := &stubProvider{content: `{"groups":[]}`}
				return New(p), p
			},
			want: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, p := tt.adapter()
			res := a.Run(context.Background(), "Name a pet", rules, responses)

			assert.Equal(t, models.SourceLocal, res.Source)
			assert.True(t, errors.Is(res.Failure, tt.want), "got %v", res.Failure)
			if p != nil {
				assert.Equal(t, 1, p.calls)
			}
			if diff := cmp.Diff(similarity.ClusterResponses(responses, rules), res.Clusters); diff != "" {
				t.Errorf("fallback clusters mismatch (-local +got):\n%s", diff)
			}
		})
	}
}

type failingProvider struct{}

func (failingProvider) Name() string { return "fake" }

func (failingProvider) Complete(context.Context, Request) (string, error) {
	return "", errors.New("connection reset")
}

func TestPlainProviderErrorIsUpstream(t *testing.T) {
	_, err := New(failingProvider{}).Cluster(context.Background(), "q", models.SynonymRuleSet{}, sample("cat"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestResolveStatus(t *testing.T) {
	azure := Config{AzureAPIKey: "k", AzureEndpoint: "https://x", AzureDeployment: "d"}
	tests := []struct {
		name string
		cfg  Config
		want Status
	}{
		{name: "nothing configured", cfg: Config{}, want: Status{}},
		{name: "openai key", cfg: Config{OpenAIAPIKey: "k"}, want: Status{Available: true, Provider: ProviderOpenAI}},
		{name: "azure only", cfg: azure, want: Status{Available: true, Provider: ProviderAzure}},
		{name: "azure incomplete", cfg: Config{AzureAPIKey: "k"}, want: Status{}},
		{
			name: "explicit azure incomplete ignores openai",
			cfg:  Config{Provider: "Azure", OpenAIAPIKey: "k", AzureAPIKey: "k"},
			want: Status{},
		},
		{
			name: "openai preferred over azure",
			cfg:  Config{OpenAIAPIKey: "k", AzureAPIKey: "k", AzureEndpoint: "https://x", AzureDeployment: "d"},
			want: Status{Available: true, Provider: ProviderOpenAI},
		},
		{name: "gemini last resort", cfg: Config{GeminiAPIKey: "g"}, want: Status{Available: true, Provider: ProviderGemini}},
		{
			name: "explicit gemini",
			cfg:  Config{Provider: "gemini", GeminiAPIKey: "g", OpenAIAPIKey: "k"},
			want: Status{Available: true, Provider: ProviderGemini},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStatus(tt.cfg))
		})
	}
}

func TestNewProviderNotConfigured(t *testing.T) {
	_, err := NewProvider(Config{Provider: "azure"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.False(t, errors.Is(err, ErrUpstream))
}

func TestNewProviderNames(t *testing.T) {
	p, err := NewProvider(Config{OpenAIAPIKey: "k", OpenAIModel: "gpt-4.1"})
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4.1", p.Name())

	p, err = NewProvider(Config{GeminiAPIKey: "g"})
	require.NoError(t, err)
	assert.Equal(t, "gemini/"+defaultGeminiModel, p.Name())
}

func TestValidate(t *testing.T) {
	submitted := sample("one", "two", "three", "four", "five", "six")

	t.Run("synthesized examples capped", func(t *testing.T) {
		clusters, err := Validate(`{"clusters":[{"label":"nums","memberIds":["r1","r2","r3","r4","r5","r6"]}]}`, submitted, 6)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Equal(t, []string{"one", "two", "three", "four"}, clusters[0].Examples)
		assert.Equal(t, 100, clusters[0].Percentage)
	})

	t.Run("provided examples capped", func(t *testing.T) {
		clusters, err := Validate(`{"clusters":[{"label":"x","memberIds":["r1"],"examples":["a","b","c","d","e"]}]}`, submitted, 6)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, clusters[0].Examples)
	})

	t.Run("label trimmed and capped", func(t *testing.T) {
		long := strings.Repeat("ü", 80)
		clusters, err := Validate(`{"clusters":[{"label":"  `+long+`  ","memberIds":["r1"]}]}`, submitted, 6)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("ü", MaxLabelRunes), clusters[0].Label)
	})

	t.Run("missing label uses first example", func(t *testing.T) {
		clusters, err := Validate(`{"clusters":[{"memberIds":["r2"]}]}`, submitted, 6)
		require.NoError(t, err)
		assert.Equal(t, "two", clusters[0].Label)
	})

	t.Run("sorted by count", func(t *testing.T) {
		clusters, err := Validate(`{"clusters":[{"label":"a","memberIds":["r1"]},{"label":"b","memberIds":["r2","r3"]},{"label":"c","memberIds":["r4"]}]}`, submitted, 6)
		require.NoError(t, err)
		labels := []string{clusters[0].Label, clusters[1].Label, clusters[2].Label}
		assert.Equal(t, []string{"b", "a", "c"}, labels)
		assert.Equal(t, 33, clusters[0].Percentage)
		assert.Equal(t, 17, clusters[1].Percentage)
	})

	t.Run("code fence stripped", func(t *testing.T) {
		clusters, err := Validate("```json\n{\"clusters\":[{\"label\":\"x\",\"memberIds\":[\"r1\"]}]}\n```", submitted, 6)
		require.NoError(t, err)
		assert.Len(t, clusters, 1)
	})

	t.Run("empty list", func(t *testing.T) {
		clusters, err := Validate(`{"clusters":[]}`, submitted, 6)
		require.NoError(t, err)
		assert.NotNil(t, clusters)
		assert.Empty(t, clusters)
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Positive(t, estimateTokens("Name something you find in a kitchen"))
	assert.Zero(t, estimateTokens(""))
}
