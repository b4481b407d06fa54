package unillm

import "github.com/voocel/unillm/providers"

// Re-export the core types so most programs only import this package.

type (
	AdapterKind   = providers.AdapterKind
	ModelIden     = providers.ModelIden
	ServiceType   = providers.ServiceType
	ServiceTarget = providers.ServiceTarget
	AuthData      = providers.AuthData
	Endpoint      = providers.Endpoint
	ListingSource = providers.ListingSource

	ChatRole     = providers.ChatRole
	ChatMessage  = providers.ChatMessage
	ContentPart  = providers.ContentPart
	ChatRequest  = providers.ChatRequest
	ChatOptions  = providers.ChatOptions
	ChatResponse = providers.ChatResponse
	Tool         = providers.Tool
	ToolCall     = providers.ToolCall
	ToolResponse = providers.ToolResponse
	Usage        = providers.Usage

	ReasoningEffort     = providers.ReasoningEffort
	ReasoningEffortType = providers.ReasoningEffortType
	ResponseFormat      = providers.ResponseFormat

	ChatStream      = providers.ChatStream
	StreamEvent     = providers.StreamEvent
	StreamEventKind = providers.StreamEventKind
	StreamEndData   = providers.StreamEndData

	EmbedRequest  = providers.EmbedRequest
	EmbedOptions  = providers.EmbedOptions
	EmbedResponse = providers.EmbedResponse

	Model    = providers.Model
	Modality = providers.Modality
)

const (
	KindOpenAI    = providers.KindOpenAI
	KindAnthropic = providers.KindAnthropic
	KindCohere    = providers.KindCohere
	KindDeepSeek  = providers.KindDeepSeek
	KindFireworks = providers.KindFireworks
	KindGemini    = providers.KindGemini
	KindGroq      = providers.KindGroq
	KindTogether  = providers.KindTogether
	KindXai       = providers.KindXai
	KindNebius    = providers.KindNebius
	KindOllama    = providers.KindOllama
	KindZai       = providers.KindZai
	KindZhipu     = providers.KindZhipu
	KindCopilot   = providers.KindCopilot

	StreamStart          = providers.StreamStart
	StreamChunk          = providers.StreamChunk
	StreamReasoningChunk = providers.StreamReasoningChunk
	StreamToolCallChunk  = providers.StreamToolCallChunk
	StreamEnd            = providers.StreamEnd

	SourceStatic = providers.SourceStatic
	SourceLive   = providers.SourceLive

	ModalityText     = providers.ModalityText
	ModalityImage    = providers.ModalityImage
	ModalityAudio    = providers.ModalityAudio
	ModalityVideo    = providers.ModalityVideo
	ModalityDocument = providers.ModalityDocument
)

var (
	ParseModelIden     = providers.ParseModelIden
	NewModelIden       = providers.NewModelIden
	ParseAdapterKind   = providers.ParseAdapterKind
	AllAdapterKinds    = providers.AllAdapterKinds
	AuthFromEnv        = providers.AuthFromEnv
	AuthFromKey        = providers.AuthFromKey
	NoAuth             = providers.NoAuth
	NewEndpoint        = providers.NewEndpoint
	NewChatRequest     = providers.NewChatRequest
	SystemMessage      = providers.SystemMessage
	UserMessage        = providers.UserMessage
	UserParts          = providers.UserParts
	AssistantMessage   = providers.AssistantMessage
	AssistantToolCalls = providers.AssistantToolCalls

	ToolResponseMessage = providers.ToolResponseMessage
	TextPart            = providers.TextPart
	ImageURLPart        = providers.ImageURLPart
	ImageBase64Part     = providers.ImageBase64Part

	JSONMode             = providers.JSONMode
	JSONSchemaFormat     = providers.JSONSchemaFormat
	ParseReasoningEffort = providers.ParseReasoningEffort
	ReasoningBudget      = providers.ReasoningBudget
	ReasoningLow         = providers.ReasoningLow
	ReasoningMedium      = providers.ReasoningMedium
	ReasoningHigh        = providers.ReasoningHigh
)
