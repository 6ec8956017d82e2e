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

func main() {
	url := flag.String("url", "https://localhost:9000/.well-known/openid-configuration", "OIDC discovery URL to probe")
	timeout := flag.Duration("timeout", 3*time.Second, "HTTP request timeout")
	expectedIssuer := flag.String("expected-issuer", "", "Optional expected issuer value")
	caFile := flag.String("ca-file", "", "Optional PEM file with the CA to trust")
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
}

// newHTTPClient trusts the CA in caFile when provided. Without one it skips
// verification, since the local compose JWKS uses a self-signed cert.
func newHTTPClient(timeout time.Duration, caFile string) (*http.Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	if caFile != "" {
		pemBytes, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("no certificates parsed from %s", caFile)
		}
		tlsConfig = &tls.Config{RootCAs: pool}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
