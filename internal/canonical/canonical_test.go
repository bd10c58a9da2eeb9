package canonical

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "lowercase passthrough", input: "abc def", expected: "abc def"},
		{name: "umlauts stripped", input: "Büromaterial März", expected: "buromaterial marz"},
		{name: "accents stripped", input: "Café Crème", expected: "cafe creme"},
		{name: "punctuation collapsed", input: "ACME,  GmbH -- Berlin!", expected: "acme gmbh berlin"},
		{name: "leading and trailing noise trimmed", input: "  **Zahlung**  ", expected: "zahlung"},
		{name: "digits kept", input: "RE 2025/001", expected: "re 2025 001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeText(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeText(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
			// Idempotence
			if again := NormalizeText(got); again != got {
				t.Errorf("NormalizeText not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNormalizeVendor(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "legal form dropped", input: "ACME GmbH", expected: "acme"},
		{name: "several legal forms dropped", input: "Muster AG & Co. KG", expected: "muster"},
		{name: "stopwords dropped", input: "Bäckerei und Konditorei Schmidt", expected: "backerei konditorei schmidt"},
		{name: "only legal forms keeps normalized form", input: "GmbH", expected: "gmbh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeVendor(tt.input); got != tt.expected {
				t.Errorf("NormalizeVendor(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"re-2025-001", "RE-2025-001"},
		{"  DE02 1203 0000 0000 2020 51 ", "DE02120300000000202051"},
		{"e2e 123", "E2E123"},
	}

	for _, tt := range tests {
		if got := CanonID(tt.input); got != tt.expected {
			t.Errorf("CanonID(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestCanonCompact(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"DE02-1203.0000 0000:2020/51", "DE02120300000000202051"},
		{"re 2025/001", "RE2025001"},
	}

	for _, tt := range tests {
		if got := CanonCompact(tt.input); got != tt.expected {
			t.Errorf("CanonCompact(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestVendorCompatible(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected bool
	}{
		{name: "both empty", a: "", b: "", expected: false},
		{name: "one empty", a: "ACME", b: "", expected: false},
		{name: "exact after normalization", a: "ACME GmbH", b: "acme", expected: true},
		{name: "two shared tokens", a: "Stadtwerke München Vertrieb", b: "Stadtwerke München", expected: true},
		{name: "single specific token against short label", a: "Amazon Payments Europe", b: "Amazon", expected: true},
		{name: "alias canonicalization", a: "Telekom Deutschland", b: "Telefonica Germany", expected: true},
		{name: "generic sole token rejected", a: "Online Payment", b: "Payment Service", expected: false},
		{name: "numeric sole token rejected", a: "4711 Nord", b: "4711 Sued", expected: false},
		{name: "substring containment", a: "Musterfirma Beteiligungs", b: "Musterfirma Beteiligungsgesellschaft", expected: true},
		{name: "unrelated names", a: "ACME", b: "Globex", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VendorCompatible(tt.a, tt.b); got != tt.expected {
				t.Errorf("VendorCompatible(%q, %q) = %v, expected %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestExtractInvoiceNo(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "trigger with strong token", input: "Rechnung 4711", expected: "4711"},
		{name: "trigger with separator", input: "Rechnung Nr 2025-100", expected: "2025-100"},
		{name: "structured number without trigger", input: "Zahlung RG-2025-100 danke", expected: "RG-2025-100"},
		{name: "two weak candidates yield nothing", input: "AB-12345 CD-67890", expected: ""},
		{name: "plain words yield nothing", input: "Vielen Dank fuer den Einkauf", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractInvoiceNo(tt.input); got != tt.expected {
				t.Errorf("ExtractInvoiceNo(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMatchInvoiceNoInText(t *testing.T) {
	tests := []struct {
		name      string
		invoiceNo string
		text      string
		expected  bool
	}{
		{name: "empty needle", invoiceNo: "", text: "Rechnung 1234", expected: false},
		{name: "numeric bounded match", invoiceNo: "1234", text: "ref 1234 abc", expected: true},
		{name: "numeric inside longer run rejected", invoiceNo: "1234", text: "konto 91234567", expected: false},
		{name: "numeric at text edge", invoiceNo: "1234", text: "1234", expected: true},
		{name: "alphanumeric compacted match", invoiceNo: "RE2025001", text: "Rechnung RE-2025-001 vom 10.02.", expected: true},
		{name: "short alphanumeric rejected", invoiceNo: "AB1", text: "AB1", expected: false},
		{name: "no occurrence", invoiceNo: "RE2025001", text: "Dauerauftrag Miete", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchInvoiceNoInText(tt.invoiceNo, tt.text); got != tt.expected {
				t.Errorf("MatchInvoiceNoInText(%q, %q) = %v, expected %v", tt.invoiceNo, tt.text, got, tt.expected)
			}
		})
	}
}
