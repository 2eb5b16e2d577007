package remotestore

import "testing"

func TestNegotiateVersionAccepted(t *testing.T) {
	v, err := negotiateVersion("1.0.3")
	if err != nil {
		t.Fatalf("negotiateVersion: %v", err)
	}

	if v.String() != "1.0.3" {
		t.Fatalf("negotiated version = %s, want 1.0.3", v)
	}
}

func TestNegotiateVersionRejectsOutOfRange(t *testing.T) {
	if _, err := negotiateVersion("2.0.0"); err == nil {
		t.Fatalf("negotiateVersion accepted a daemon outside ^1.0.0")
	}
}

func TestNegotiateVersionRejectsMalformed(t *testing.T) {
	if _, err := negotiateVersion("not-a-version"); err == nil {
		t.Fatalf("negotiateVersion accepted a malformed version string")
	}
}
