package locale

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		lang string
		want string
	}{
		{name: "croatian default", lang: "hr", want: "hr"},
		{name: "german", lang: "de", want: "de"},
		{name: "german regional", lang: "de-AT", want: "de"},
		{name: "english", lang: "EN", want: "en"},
		{name: "unknown falls back", lang: "fr", want: "hr"},
		{name: "empty falls back", lang: "", want: "hr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.lang); got != tt.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

func TestGet_AllLanguagesComplete(t *testing.T) {
	for _, lang := range []string{"hr", "de", "en"} {
		tx := Get(lang)
		if tx.Welcome == "" || tx.ConfirmedFmt == "" || tx.ErrWrongPIN == "" ||
			tx.ErrMissingPhone == "" || tx.ErrMissingPIN == "" || tx.ErrGeneric == "" {
			t.Fatalf("texts for %q are incomplete: %+v", lang, tx)
		}
	}
}

func TestGet_UnknownLangFallsBack(t *testing.T) {
	if Get("fr").Welcome != Get("hr").Welcome {
		t.Fatalf("unknown language must fall back to hr")
	}
}
