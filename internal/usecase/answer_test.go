package usecase

import "testing"

func TestExtractAnswer(t *testing.T) {
	cases := map[string]string{
		"**1. User Query:** q **2. Resources Search:** r **3. Agent Answer:** The margin widened. **4. Sources:** s": "The margin widened.",
		"Agent Answer: Buy the dip. Resources Search: none":                                                         "Buy the dip.",
		"plain text reply":                                                                                           "plain text reply",
		"":                                                                                                           "",
		"**3. agent answer:**\n\nLower case heading":                                                               "Lower case heading",
	}
	for in, want := range cases {
		if got := ExtractAnswer(in); got != want {
			t.Errorf("ExtractAnswer(%q) = %q, want %q", in, got, want)
		}
	}
}
