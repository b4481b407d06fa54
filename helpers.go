package unillm

// IntPtr returns a pointer to an int value
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr returns a pointer to a float64 value
func Float64Ptr(v float64) *float64 {
	return &v
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(v bool) *bool {
	return &v
}

// CaptureAll returns options that capture every streamed artifact into the
// stream's end summary.
func CaptureAll() ChatOptions {
	return ChatOptions{}.
		WithCaptureContent(true).
		WithCaptureUsage(true).
		WithCaptureReasoning(true).
		WithCaptureToolCalls(true)
}
