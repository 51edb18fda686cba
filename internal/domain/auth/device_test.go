package auth

import "testing"

func TestFingerprintDevice(t *testing.T) {
	a := FingerprintDevice("Mozilla/5.0", "10.0.0.1")
	b := FingerprintDevice("Mozilla/5.0", "10.0.0.1")
	c := FingerprintDevice("Mozilla/5.0", "10.0.0.2")

	if a != b {
		t.Error("same inputs should produce the same fingerprint")
	}
	if a == c {
		t.Error("different addresses should produce different fingerprints")
	}
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a))
	}
}

func TestFingerprintDeviceEmptyInputs(t *testing.T) {
	if got := FingerprintDevice("", ""); got != "unknown" {
		t.Errorf("FingerprintDevice(\"\", \"\") = %q, want unknown", got)
	}

	// a missing user agent still yields a stable id
	if FingerprintDevice("", "10.0.0.1") != FingerprintDevice("", "10.0.0.1") {
		t.Error("fingerprint should be stable with empty user agent")
	}
}
