package providers

import (
	"fmt"
	"maps"
	"slices"
)

// Modality is an input or output medium.
type Modality int

const (
	ModalityText Modality = iota + 1
	ModalityImage
	ModalityAudio
	ModalityVideo
	ModalityDocument
)

func (m Modality) String() string {
	switch m {
	case ModalityText:
		return "text"
	case ModalityImage:
		return "image"
	case ModalityAudio:
		return "audio"
	case ModalityVideo:
		return "video"
	case ModalityDocument:
		return "document"
	default:
		return fmt.Sprintf("Modality(%d)", int(m))
	}
}

func (m Modality) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Modality) UnmarshalText(text []byte) error {
	for v := ModalityText; v <= ModalityDocument; v++ {
		if v.String() == string(text) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown modality %q", text)
}

// Model describes what a model can do. Token limits are nil when unknown.
// Modality lists are sorted and free of duplicates.
type Model struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Provider             AdapterKind           `json:"provider"`
	MaxInputTokens       *int                  `json:"max_input_tokens,omitempty"`
	MaxOutputTokens      *int                  `json:"max_output_tokens,omitempty"`
	InputModalities      []Modality            `json:"input_modalities"`
	OutputModalities     []Modality            `json:"output_modalities"`
	SupportsReasoning    bool                  `json:"supports_reasoning"`
	ReasoningEfforts     []ReasoningEffortType `json:"reasoning_efforts,omitempty"`
	SupportsToolCalls    bool                  `json:"supports_tool_calls"`
	SupportsStreaming    bool                  `json:"supports_streaming"`
	SupportsJSONMode     bool                  `json:"supports_json_mode"`
	AdditionalProperties map[string]any        `json:"additional_properties,omitempty"`
}

// NewModel returns a text-only descriptor with every capability off.
func NewModel(kind AdapterKind, id string) Model {
	return Model{
		ID:               id,
		Name:             id,
		Provider:         kind,
		InputModalities:  []Modality{ModalityText},
		OutputModalities: []Modality{ModalityText},
	}
}

func (m Model) WithName(name string) Model {
	m.Name = name
	return m
}

func (m Model) WithMaxInputTokens(n int) Model {
	m.MaxInputTokens = &n
	return m
}

func (m Model) WithMaxOutputTokens(n int) Model {
	m.MaxOutputTokens = &n
	return m
}

func (m Model) WithInputModalities(mods ...Modality) Model {
	m.InputModalities = modalitySet(mods)
	return m
}

func (m Model) WithOutputModalities(mods ...Modality) Model {
	m.OutputModalities = modalitySet(mods)
	return m
}

func (m Model) WithInputModality(mod Modality) Model {
	m.InputModalities = modalitySet(append(slices.Clone(m.InputModalities), mod))
	return m
}

func (m Model) WithOutputModality(mod Modality) Model {
	m.OutputModalities = modalitySet(append(slices.Clone(m.OutputModalities), mod))
	return m
}

// WithReasoning toggles reasoning support. Turning it off clears the efforts.
func (m Model) WithReasoning(supported bool) Model {
	m.SupportsReasoning = supported
	if !supported {
		m.ReasoningEfforts = nil
	}
	return m
}

// WithReasoningEfforts sets the effort levels and implies reasoning support.
func (m Model) WithReasoningEfforts(efforts ...ReasoningEffortType) Model {
	m.ReasoningEfforts = slices.Clone(efforts)
	m.SupportsReasoning = true
	return m
}

func (m Model) WithToolCalls(supported bool) Model {
	m.SupportsToolCalls = supported
	return m
}

func (m Model) WithStreaming(supported bool) Model {
	m.SupportsStreaming = supported
	return m
}

func (m Model) WithJSONMode(supported bool) Model {
	m.SupportsJSONMode = supported
	return m
}

func (m Model) WithAdditionalProperty(key string, value any) Model {
	props := make(map[string]any, len(m.AdditionalProperties)+1)
	maps.Copy(props, m.AdditionalProperties)
	props[key] = value
	m.AdditionalProperties = props
	return m
}

func (m Model) SupportsInputModality(mod Modality) bool {
	return slices.Contains(m.InputModalities, mod)
}

func (m Model) SupportsOutputModality(mod Modality) bool {
	return slices.Contains(m.OutputModalities, mod)
}

func (m Model) SupportsReasoningEffort(t ReasoningEffortType) bool {
	return slices.Contains(m.ReasoningEfforts, t)
}

// IsWithinInputLimit is true when the limit is unknown or not exceeded.
func (m Model) IsWithinInputLimit(tokens int) bool {
	return m.MaxInputTokens == nil || tokens <= *m.MaxInputTokens
}

// IsWithinOutputLimit is true when the limit is unknown or not exceeded.
func (m Model) IsWithinOutputLimit(tokens int) bool {
	return m.MaxOutputTokens == nil || tokens <= *m.MaxOutputTokens
}

// IsMultimodal reports anything beyond text in, text out.
func (m Model) IsMultimodal() bool {
	return len(m.InputModalities) > 1 || len(m.OutputModalities) > 1 ||
		!m.SupportsInputModality(ModalityText) || !m.SupportsOutputModality(ModalityText)
}

func modalitySet(mods []Modality) []Modality {
	out := slices.Clone(mods)
	slices.Sort(out)
	return slices.Compact(out)
}
