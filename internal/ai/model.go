package ai

// ModelUsed returns the model identifier that served a request.
// It prefers response metadata, then the response model, then the request
// model, then the provider name.
func ModelUsed(resp *AIResponse, req *AIRequest) string {
	if resp != nil && resp.Metadata != nil {
		if v, ok := resp.Metadata["model"]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if resp != nil && resp.Model != "" {
		return resp.Model
	}
	if req != nil && req.Model != "" {
		return req.Model
	}
	if resp != nil && resp.Provider != "" {
		return string(resp.Provider)
	}
	return "unknown"
}
