package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Credentials holds an OAuth 1.0a consumer/token pair.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Signer signs outgoing requests with HMAC-SHA1 per RFC 5849.
type Signer struct {
	creds     Credentials
	nowFunc   func() time.Time
	nonceFunc func() string
}

// Option customizes signer behavior.
type Option func(*Signer)

// WithNowFunc overrides the timestamp source (used in tests).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.nowFunc = now
		}
	}
}

// WithNonceFunc overrides the nonce source (used in tests).
func WithNonceFunc(nonce func() string) Option {
	return func(s *Signer) {
		if nonce != nil {
			s.nonceFunc = nonce
		}
	}
}

// NewSigner creates a signer for the given credentials.
func NewSigner(creds Credentials, opts ...Option) *Signer {
	s := &Signer{
		creds:     creds,
		nowFunc:   time.Now,
		nonceFunc: randomNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authorize computes the oauth_signature over the request's query string and
// the given form body and sets the Authorization header.
func (s *Signer) Authorize(req *http.Request, form url.Values) {
	oauthParams := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            s.nonceFunc(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.nowFunc().Unix(), 10),
		"oauth_token":            s.creds.Token,
		"oauth_version":          "1.0",
	}

	signature := s.signature(req.Method, req.URL, req.URL.Query(), form, oauthParams)
	oauthParams["oauth_signature"] = signature

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", percentEncode(k), percentEncode(oauthParams[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(parts, ", "))
}

func (s *Signer) signature(method string, u *url.URL, query, form url.Values, oauthParams map[string]string) string {
	params := make(map[string][]string)
	for k, vs := range query {
		params[k] = append(params[k], vs...)
	}
	for k, vs := range form {
		params[k] = append(params[k], vs...)
	}
	for k, v := range oauthParams {
		params[k] = append(params[k], v)
	}

	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, p.k+"="+p.v)
	}
	paramString := strings.Join(encoded, "&")

	baseURL := u.Scheme + "://" + u.Host + u.Path
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(paramString)

	signingKey := percentEncode(s.creds.ConsumerSecret) + "&" + percentEncode(s.creds.TokenSecret)
	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode implements RFC 3986 encoding as required by OAuth (stricter
// than url.QueryEscape, which emits '+').
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			b.WriteString("%" + strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return b.String()
}

func randomNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
