package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type oidcDiscoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

func main() {
	url := flag.String("url", "https://localhost:9000/.well-known/openid-configuration", "OIDC discovery URL to probe")
	timeout := flag.Duration("timeout", 3*time.Second, "HTTP request timeout")
	expectedIssuer := flag.String("expected-issuer", "", "Optional expected issuer value")
	caFile := flag.String("ca-file", "", "Optional CA certificate to trust; insecure TLS is used when empty")
	checkKeys := flag.Bool("check-keys", false, "Also fetch jwks_uri and require at least one key")
	flag.Parse()

	client, err := newHTTPClient(*timeout, *caFile)
	if err != nil {
		exitErr(err)
	}

	resp, err := client.Get(*url)
	if err != nil {
		exitErr(fmt.Errorf("healthcheck request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		exitErr(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	var doc oidcDiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		exitErr(fmt.Errorf("failed to decode discovery document: %w", err))
	}

	if strings.TrimSpace(doc.Issuer) == "" {
		exitErr(fmt.Errorf("discovery document missing issuer"))
	}
	if strings.TrimSpace(doc.JWKSURI) == "" {
		exitErr(fmt.Errorf("discovery document missing jwks_uri"))
	}
	if *expectedIssuer != "" && doc.Issuer != *expectedIssuer {
		exitErr(fmt.Errorf("issuer mismatch: got %q want %q", doc.Issuer, *expectedIssuer))
	}

	if *checkKeys {
		if err := probeJWKS(client, doc.JWKSURI); err != nil {
			exitErr(err)
		}
	}
}

// newHTTPClient trusts the provided CA file when given; otherwise it skips
// TLS verification because the local compose JWKS uses a self-signed cert.
func newHTTPClient(timeout time.Duration, caFile string) (*http.Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: true}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("failed to parse CA file %q", caFile)
		}
		tlsConfig = &tls.Config{RootCAs: pool}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func probeJWKS(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("jwks request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode jwks document: %w", err)
	}
	if len(doc.Keys) == 0 {
		return fmt.Errorf("jwks document contains no keys")
	}
	return nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
