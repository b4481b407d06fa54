package providers

import "context"

// copilotAdapter speaks the GitHub Copilot chat API. The wire format is
// OpenAI-compatible; it differs in editor identification headers, in the
// vision flag and in a richer model listing.
type copilotAdapter struct {
	*compatAdapter
}

const copilotAPIVersion = "2025-05-01"

func newCopilotAdapter(deps Deps) *copilotAdapter {
	return &copilotAdapter{compatAdapter: newCompatAdapter(KindCopilot, deps)}
}

func (a *copilotAdapter) BuildRequest(target ServiceTarget, service ServiceType, req ChatRequest, opts ChatOptions) (*WebRequestData, error) {
	data, err := a.compatAdapter.BuildRequest(target, service, req, opts)
	if err != nil {
		return nil, err
	}
	if req.HasImages() {
		data.Headers["Copilot-Vision-Request"] = "true"
	}
	data.Payload["n"] = 1
	data.Payload["intent"] = true
	return data, nil
}

func (a *copilotAdapter) ListModels(ctx context.Context, target ServiceTarget) ([]Model, ListingSource) {
	data, ok := a.fetchModelData(ctx, target, map[string]string{"x-github-api-version": copilotAPIVersion})
	if !ok {
		return StaticModels(KindCopilot), SourceStatic
	}
	models := make([]Model, 0, len(data))
	for _, item := range data {
		models = append(models, parseCopilotModel(item))
	}
	return models, SourceLive
}

func (a *copilotAdapter) ListModelNames(ctx context.Context, target ServiceTarget) ([]string, ListingSource) {
	ids, ok := a.fetchModelIDs(ctx, target, map[string]string{"x-github-api-version": copilotAPIVersion})
	if !ok {
		return StaticModelNames(KindCopilot), SourceStatic
	}
	return ids, SourceLive
}

// parseCopilotModel starts from the inferred capabilities and lets the
// listing's own limits and feature flags override them.
func parseCopilotModel(item listedModel) Model {
	m := ResolveCapabilities(KindCopilot, item.ID)
	if name, ok := item.Raw["name"].(string); ok && name != "" {
		m = m.WithName(name)
	}

	caps, _ := item.Raw["capabilities"].(map[string]any)
	if limits, ok := caps["limits"].(map[string]any); ok {
		if n, ok := limits["max_context_window_tokens"].(float64); ok {
			m = m.WithMaxInputTokens(int(n))
		}
		if n, ok := limits["max_output_tokens"].(float64); ok {
			m = m.WithMaxOutputTokens(int(n))
		}
	}
	if supports, ok := caps["supports"].(map[string]any); ok {
		if v, ok := supports["streaming"].(bool); ok {
			m = m.WithStreaming(v)
		}
		if v, ok := supports["tool_calls"].(bool); ok {
			m = m.WithToolCalls(v)
		}
		if v, ok := supports["vision"].(bool); ok && v {
			m = m.WithInputModalities(ModalityText, ModalityImage)
		}
	}
	return m
}
