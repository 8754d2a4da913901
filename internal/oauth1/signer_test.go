package oauth1

import (
	"strings"
	"testing"
	"time"
)

// Reference values from the Twitter API signing documentation.
func testSigner(t *testing.T) *Signer {
	t.Helper()

	s, err := NewSigner(Credentials{
		ConsumerKey:    "xvz1evFS4wEEPTGEFPHBog",
		ConsumerSecret: "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		AccessToken:    "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		TokenSecret:    "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	s.nonce = func() string { return "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg" }
	s.now = func() time.Time { return time.Unix(1318622958, 0) }
	return s
}

func TestAuthorizationHeader_KnownSignature(t *testing.T) {
	s := testSigner(t)

	header := s.AuthorizationHeader("POST", "https://api.twitter.com/1.1/statuses/update.json", map[string]string{
		"status":           "Hello Ladies + Gentlemen, a signed OAuth request!",
		"include_entities": "true",
	})

	// Documented signature for this exact request: tnnArxj06cWHq44gCs1OSKk/jLY=
	want := `oauth_signature="tnnArxj06cWHq44gCs1OSKk%2FjLY%3D"`
	if !strings.Contains(header, want) {
		t.Errorf("header missing expected signature\nheader: %s", header)
	}

	if !strings.HasPrefix(header, "OAuth ") {
		t.Errorf("header does not start with OAuth: %s", header)
	}
}

func TestAuthorizationHeader_Deterministic(t *testing.T) {
	a := testSigner(t)
	b := testSigner(t)

	params := map[string]string{"q": "release notes", "count": "25"}
	h1 := a.AuthorizationHeader("GET", "https://api.example.com/search", params)
	h2 := b.AuthorizationHeader("GET", "https://api.example.com/search", params)

	if h1 != h2 {
		t.Errorf("same inputs produced different headers:\n%s\n%s", h1, h2)
	}
}

func TestAuthorizationHeader_OmitsRequestParams(t *testing.T) {
	s := testSigner(t)

	header := s.AuthorizationHeader("GET", "https://api.example.com/search", map[string]string{
		"q": "hearken",
	})

	if strings.Contains(header, "q=") {
		t.Errorf("request params must not appear in the Authorization header: %s", header)
	}
}

func TestPercentEncode_ExtendedReservedSet(t *testing.T) {
	got := percentEncode("a!b'c(d)e*f ~-._")
	want := "a%21b%27c%28d%29e%2Af%20~-._"
	if got != want {
		t.Errorf("percentEncode = %q, want %q", got, want)
	}
}

func TestNewSigner_MissingCredentials(t *testing.T) {
	_, err := NewSigner(Credentials{ConsumerKey: "only-one"})
	if err == nil {
		t.Fatal("expected error for incomplete credentials")
	}
}

func TestDefaultNonce_AlphanumericAndUnique(t *testing.T) {
	a := defaultNonce()
	b := defaultNonce()

	if a == b {
		t.Error("two nonces were identical")
	}
	if len(a) != 32 {
		t.Errorf("nonce length = %d, want 32", len(a))
	}
	for _, r := range a {
		if !strings.ContainsRune(nonceAlphabet, r) {
			t.Errorf("nonce contains non-alphanumeric rune %q", r)
		}
	}
}
