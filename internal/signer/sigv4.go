// Package signer implements AWS Signature Version 4 request signing for
// the Selling Partner API (service "execute-api"). Signing is a pure
// function of the request, the long-lived service credentials, and the
// clock; it performs no I/O and mutates no shared state.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bucs445fall2025/project-stackoverflowed/internal/domain/spapi"
)

const (
	algorithm = "AWS4-HMAC-SHA256"
	service   = "execute-api"

	amzDateFormat   = "20060102T150405Z"
	shortDateFormat = "20060102"
)

// Credentials are the long-lived IAM keys used to derive signing keys.
// They are distinct from the LWA OAuth client credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Request is the unsigned input to Sign. Headers hold the values that must
// be covered by the signature; host and x-amz-date are added automatically.
type Request struct {
	Method  string
	Host    string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// SignedRequest is an immutable value carrying everything needed to send
// the request. Every header listed here was covered by the signature, so
// it must be sent verbatim; any mutation after signing invalidates it.
type SignedRequest struct {
	Method    string
	Host      string
	Path      string
	Query     url.Values
	Headers   http.Header
	Timestamp time.Time
	Signature string
}

// URL renders the absolute request URL for the given scheme. The path and
// query go out byte-for-byte as they were signed; re-escaping either would
// diverge the wire request from the canonical one and fail verification
// upstream.
func (r *SignedRequest) URL(scheme string) string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(r.Host)
	b.WriteString(r.Path)
	if q := canonicalQuery(r.Query); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

// Sign computes the SigV4 authorization header over the request. The same
// input signed twice within the same second yields byte-identical output.
func Sign(req Request, creds Credentials, region string, now time.Time) (*SignedRequest, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, &spapi.SigningError{Reason: "missing service credentials"}
	}
	if req.Method == "" {
		return nil, &spapi.SigningError{Reason: "missing request method"}
	}
	if req.Host == "" {
		return nil, &spapi.SigningError{Reason: "missing request host"}
	}
	if region == "" {
		return nil, &spapi.SigningError{Reason: "missing signing region"}
	}

	now = now.UTC()
	amzDate := now.Format(amzDateFormat)
	shortDate := now.Format(shortDateFormat)

	path := req.Path
	if path == "" {
		path = "/"
	}

	headers := map[string]string{
		"host":       req.Host,
		"x-amz-date": amzDate,
	}
	for name, value := range req.Headers {
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, name := range names {
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteByte(':')
		canonicalHeaders.WriteString(headers[name])
		canonicalHeaders.WriteByte('\n')
	}
	signedHeaders := strings.Join(names, ";")

	payloadHash := hexSHA256(req.Body)

	canonicalRequest := strings.Join([]string{
		req.Method,
		path,
		canonicalQuery(req.Query),
		canonicalHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{shortDate, region, service, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := deriveKey(creds.SecretAccessKey, shortDate, region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	out := &SignedRequest{
		Method:    req.Method,
		Host:      req.Host,
		Path:      path,
		Query:     cloneValues(req.Query),
		Headers:   http.Header{},
		Timestamp: now,
		Signature: signature,
	}
	for name, value := range headers {
		if name == "host" {
			continue
		}
		out.Headers.Set(name, value)
	}
	out.Headers.Set("Authorization",
		algorithm+" Credential="+creds.AccessKeyID+"/"+scope+
			", SignedHeaders="+signedHeaders+
			", Signature="+signature)

	return out, nil
}

// canonicalQuery encodes query parameters with RFC 3986 escaping (%20, not
// +), keys and values sorted, as SigV4 requires.
func canonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, value := range values {
			parts = append(parts, uriEscape(key)+"="+uriEscape(value))
		}
	}
	return strings.Join(parts, "&")
}

func uriEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func cloneValues(query url.Values) url.Values {
	if query == nil {
		return nil
	}
	out := make(url.Values, len(query))
	for key, values := range query {
		out[key] = append([]string(nil), values...)
	}
	return out
}

func deriveKey(secret, shortDate, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(shortDate))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
