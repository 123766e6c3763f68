package prompttemplate

import "testing"

func TestRenderSubstitutesGlobally(t *testing.T) {
	tmpl := "{{product_name}} is great. Buy {{product_name}} today at {{product_url}}."
	out := Render(tmpl, map[string]string{"product_name": "Acme", "product_url": "https://acme.test"})
	want := "Acme is great. Buy Acme today at https://acme.test."
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderStripsEmptySection(t *testing.T) {
	tmpl := "intro {{#cta}}Click here: {{cta_button}}{{/cta}} outro"
	out := Render(tmpl, map[string]string{})
	want := "intro  outro"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderKeepsNonEmptySection(t *testing.T) {
	tmpl := "intro {{#cta}}Click here: {{cta_button}}{{/cta}} outro"
	out := Render(tmpl, map[string]string{"cta": "1", "cta_button": "Buy Now"})
	want := "intro Click here: Buy Now outro"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestStripUnresolvedRemovesStrayTokens(t *testing.T) {
	out := StripUnresolved("hello {{unknown}} world")
	want := "hello  world"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}
