// Package oauth1 builds OAuth 1.0a Authorization headers for providers that
// require 3-legged HMAC-SHA1 request signing. HMAC-SHA1 is mandated by the
// provider protocol and must be kept for interoperability.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Credentials holds the four values OAuth 1.0a signing requires.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	TokenSecret    string
}

// Signer produces Authorization headers for signed requests. Nonce and
// clock sources are per-instance so concurrent connectors never share
// signing state and tests can pin both.
type Signer struct {
	creds Credentials
	nonce func() string
	now   func() time.Time
}

// NewSigner validates the credential set and returns a ready signer.
func NewSigner(creds Credentials) (*Signer, error) {
	missing := make([]string, 0, 4)
	if creds.ConsumerKey == "" {
		missing = append(missing, "consumer key")
	}
	if creds.ConsumerSecret == "" {
		missing = append(missing, "consumer secret")
	}
	if creds.AccessToken == "" {
		missing = append(missing, "access token")
	}
	if creds.TokenSecret == "" {
		missing = append(missing, "token secret")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("oauth1: missing credentials: %s", strings.Join(missing, ", "))
	}

	return &Signer{
		creds: creds,
		nonce: defaultNonce,
		now:   time.Now,
	}, nil
}

// AuthorizationHeader signs a request and returns the full
// "OAuth ..." header value. params are the request parameters that
// participate in the signature (query or form-encoded body parameters).
func (s *Signer) AuthorizationHeader(method, rawURL string, params map[string]string) string {
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_token":            s.creds.AccessToken,
		"oauth_version":          "1.0",
	}

	all := make(map[string]string, len(oauthParams)+len(params))
	for k, v := range oauthParams {
		all[k] = v
	}
	for k, v := range params {
		all[k] = v
	}

	base := signatureBase(method, rawURL, all)
	key := percentEncode(s.creds.ConsumerSecret) + "&" + percentEncode(s.creds.TokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// Only oauth_* parameters go into the header, each value quoted.
	pairs := make([]string, 0, len(oauthParams))
	for k, v := range oauthParams {
		pairs = append(pairs, percentEncode(k)+"=\""+percentEncode(v)+"\"")
	}
	sort.Strings(pairs)

	return "OAuth " + strings.Join(pairs, ", ")
}

// signatureBase builds METHOD&encode(url)&encode(sorted-params).
func signatureBase(method, rawURL string, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
	}
	sort.Strings(pairs)
	paramString := strings.Join(pairs, "&")

	return strings.ToUpper(method) + "&" + percentEncode(rawURL) + "&" + percentEncode(paramString)
}

// percentEncode implements RFC 3986 encoding, additionally encoding
// ! ' ( ) * as the OAuth spec requires.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteString(fmt.Sprintf("%%%02X", c))
	}
	return b.String()
}

const nonceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// defaultNonce concatenates two independent random alphanumeric strings.
func defaultNonce() string {
	return randomAlphanumeric(16) + randomAlphanumeric(16)
}

func randomAlphanumeric(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(buf)
}
