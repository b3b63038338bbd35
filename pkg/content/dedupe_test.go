package content

import "testing"

func TestIsLikelyDuplicateTitle(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		existing  string
		want      bool
	}{
		{
			"identical after prefix strip",
			"Amazon.com: Acme Earbuds Pro 2 Review",
			"Acme Earbuds Pro 2",
			true,
		},
		{
			"substring of long title",
			"Acme Earbuds Pro 2 Wireless Noise Cancelling Bluetooth Headphones",
			"Acme Earbuds Pro 2 Wireless Noise Cancelling Bluetooth Headphones with Case Review",
			true,
		},
		{
			"short titles never match by substring",
			"USB-C Cable",
			"USB-C Cable 2m",
			false,
		},
		{
			"different products",
			"Acme Robot Vacuum X1",
			"Bolt Smartwatch Series 5",
			false,
		},
		{
			"empty candidate",
			"",
			"Acme Robot Vacuum X1",
			false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsLikelyDuplicateTitle(tc.candidate, tc.existing); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
