/*
Package unillm is one client for many LLM providers: OpenAI, Anthropic,
Cohere, DeepSeek, Fireworks, Gemini, Groq, Together, xAI, Nebius, Ollama,
Z.ai, Zhipu and GitHub Copilot share a single request and response model.

# Quick Start

	client, err := unillm.New()
	if err != nil {
	    log.Fatal(err)
	}

	resp, err := client.SendChat(ctx, "gpt-4o-mini",
	    unillm.NewChatRequest(unillm.UserMessage("Explain AI in one sentence.")),
	    unillm.ChatOptions{})
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(resp.Content)

The provider is inferred from the model name. Write "provider::model" to
pin it, e.g. "groq::llama-3.1-8b-instant" or "zai::glm-4.6". Credentials
come from each provider's environment variable (OPENAI_API_KEY and so on)
unless an AuthResolver says otherwise.

# Streaming

	stream, err := client.OpenChatStream(ctx, "claude-3-5-haiku-latest", req,
	    unillm.ChatOptions{}.WithCaptureContent(true))
	if err != nil {
	    log.Fatal(err)
	}
	defer stream.Close()

	for {
	    ev, err := stream.Next()
	    if errors.Is(err, io.EOF) {
	        break
	    }
	    if err != nil {
	        log.Fatal(err)
	    }
	    if ev.Kind == unillm.StreamChunk {
	        fmt.Print(ev.Content)
	    }
	}

Every stream yields exactly one StreamStart first and one StreamEnd last.
CollectStream folds a stream into a ChatResponse.

# Resolution

Each call resolves a ServiceTarget in a fixed order: the ModelMapper
rewrites the model, then the AuthResolver and EndpointResolver see the
mapped model. Resolvers run concurrently for unrelated calls and must be
reentrant.

# Capabilities

Capabilities and ListModels describe token limits, modalities, tool and
JSON-mode support and reasoning efforts. The values come from naming
heuristics and are best effort.

# Thread Safety

Client is safe for concurrent use. A ChatStream must be consumed by a
single goroutine.
*/
package unillm
