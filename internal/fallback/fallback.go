// Package fallback produces the synthetic story served whenever the model
// path is unavailable, too slow or failing.
package fallback

// Story returns the fallback story for prompt. It is pure: the same prompt
// always yields the same text, and the prompt is interpolated verbatim.
func Story(prompt string) string {
	return "In the creative journey of " + prompt + ", a passionate artist discovered the beauty of handmade craftsmanship. " +
		"Each piece created tells a story of dedication, patience, and artistic vision.\n\n" +
		"The work represents the timeless tradition of artisanal excellence, blending traditional techniques " +
		"with contemporary designs to create something truly magical and unique."
}
