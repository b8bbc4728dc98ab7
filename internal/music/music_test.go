package music

import "testing"

func TestParseGender(t *testing.T) {
	t.Parallel()

	cases := map[string]Gender{
		"Male":   GenderMale,
		"F":      GenderFemale,
		"female": GenderFemale,
		"":       GenderUnknown,
		"other":  GenderUnknown,
	}
	for in, want := range cases {
		if got := ParseGender(in); got != want {
			t.Errorf("ParseGender(%q) = %q; want %q", in, got, want)
		}
	}
}
