package broker

import (
	"strings"
	"testing"
)

const samplePage = `<html><head><title> Alex, 29 | Hinge </title><style>.x{}</style></head>
<body>
<h1>Alex</h1>
<script>var tracking = true;</script>
<div class="bio"><h2>About me</h2><p>Climber, coffee snob,
   amateur baker.</p></div>
<img src="https://cdn.example.com/1.jpg"><img src="data:image/png;base64,AAAA"><img src=" /2.jpg ">
</body></html>`

func TestExtractPage(t *testing.T) {
	page, err := ExtractPage(strings.NewReader(samplePage), "https://hinge.co/profile/alex")
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if page.Title != "Alex, 29 | Hinge" {
		t.Fatalf("unexpected title %q", page.Title)
	}
	if len(page.Headings) != 2 || page.Headings[1] != "About me" {
		t.Fatalf("unexpected headings %v", page.Headings)
	}
	if strings.Contains(page.Text, "tracking") {
		t.Fatalf("script text leaked into page text: %q", page.Text)
	}
	if !strings.Contains(page.Text, "Climber, coffee snob, amateur baker.") {
		t.Fatalf("expected collapsed bio text, got %q", page.Text)
	}
	if len(page.Images) != 2 || page.Images[1] != "/2.jpg" {
		t.Fatalf("unexpected images %v", page.Images)
	}
}

func TestDetectPlatform(t *testing.T) {
	cases := map[string]string{
		"tinder.com":                    "tinder",
		"www.bumble.com":                "bumble",
		"https://hinge.co/profile/alex": "hinge",
		"app.coffeemeetsbagel.com":      "coffee_meets_bagel",
		"www.okcupid.com":               "okcupid",
		"example.org":                   PlatformUnknown,
		"":                              PlatformUnknown,
	}
	for in, want := range cases {
		if got := DetectPlatform(in); got != want {
			t.Fatalf("DetectPlatform(%q) = %q, want %q", in, got, want)
		}
	}
}
