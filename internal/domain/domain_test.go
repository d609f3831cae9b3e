package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMapping_EffectiveFrequency(t *testing.T) {
	t.Parallel()

	override := int64(600)
	site := int64(3600)
	zero := int64(0)

	tests := []struct {
		name    string
		mapping Mapping
		want    time.Duration
	}{
		{name: "mapping override wins", mapping: Mapping{FrequencySeconds: &override, SiteFrequencySeconds: &site}, want: 10 * time.Minute},
		{name: "site default", mapping: Mapping{SiteFrequencySeconds: &site}, want: time.Hour},
		{name: "zero override ignored", mapping: Mapping{FrequencySeconds: &zero}, want: 6 * time.Hour},
		{name: "fallback", mapping: Mapping{}, want: 6 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.mapping.EffectiveFrequency(6 * time.Hour); got != tt.want {
				t.Errorf("EffectiveFrequency() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	host, err := DomainOf("https://WWW.Example.com:8443/p/1?x=y")
	if err != nil {
		t.Fatalf("DomainOf() error = %v", err)
	}
	if host != "www.example.com" {
		t.Errorf("DomainOf() = %q, want www.example.com", host)
	}

	if _, err = DomainOf("/relative/path"); err == nil {
		t.Error("DomainOf() expected error for URL without host")
	}
}

func TestFailureKind_Policy(t *testing.T) {
	t.Parallel()

	if !FailureTransient.Retryable() || FailureRateLimited.Retryable() || FailureStructural.Retryable() {
		t.Error("only transient failures are retryable")
	}
	if !FailureRateLimited.EscalatesThrottle() || !FailureBlocked.EscalatesThrottle() {
		t.Error("rate limited and blocked must escalate throttling")
	}
	if FailureTransient.EscalatesThrottle() || FailureStructural.EscalatesThrottle() {
		t.Error("transient and structural must not escalate throttling")
	}
	if FailureKind("SOMETHING").Valid() {
		t.Error("unknown kind reported valid")
	}
}

func TestIdentities_ScanValue(t *testing.T) {
	t.Parallel()

	ids := Identities{{UserAgent: "ua-1", Headers: map[string]string{"Accept-Language": "en"}}, {UserAgent: "ua-2"}}
	v, err := ids.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var scanned Identities
	if err = scanned.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(scanned) != 2 || scanned[0].Headers["Accept-Language"] != "en" {
		t.Errorf("Scan() = %+v", scanned)
	}

	if err = scanned.Scan(42); err == nil {
		t.Error("Scan(int) expected error")
	}
}

func TestScrapeCommand_Validate(t *testing.T) {
	t.Parallel()

	cmd := ScrapeCommand{CommandID: "c1", MappingID: 1, URL: "https://shop.example/p", Selectors: Selectors{Price: ".price"}}
	if err := cmd.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cmd.Selectors.Price = ""
	if err := cmd.Validate(); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Validate() error = %v, want ErrInvalidCommand", err)
	}
}

func TestScrapeCommand_WireNames(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(ScrapeCommand{CommandID: "c1", MappingID: 9, Selectors: Selectors{SellerOnPage: ".seller"}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	if err = json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"commandId", "mappingId", "canonicalProductId", "sellerName", "url", "selectors", "profile", "scheduledAt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("wire field %q missing", key)
		}
	}
	if sel, _ := fields["selectors"].(map[string]any); sel["sellerOnPage"] != ".seller" {
		t.Errorf("selectors = %v", fields["selectors"])
	}
}
