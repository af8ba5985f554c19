package events

import (
	"testing"

	"dexpulse/internal/quote"
)

const (
	testTokenMint = "So11111111111111111111111111111111111111112"
	otherMint     = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		logs []string
		want Kind
	}{
		{
			name: "empty",
			logs: nil,
			want: KindUnknown,
		},
		{
			name: "unrelated",
			logs: []string{"Program log: transfer", "Program consumed 2000 compute units"},
			want: KindUnknown,
		},
		{
			name: "swap instruction",
			logs: []string{"Program log: Instruction: Swap"},
			want: KindSwap,
		},
		{
			name: "swap event",
			logs: []string{"Program data: SwapEvent { amount_in: 5 }"},
			want: KindSwap,
		},
		{
			name: "pool init",
			logs: []string{"Program log: initialize2: InitializeInstruction2"},
			want: KindPoolInit,
		},
		{
			name: "init wins over swap",
			logs: []string{
				"Program log: Instruction: Swap",
				"Program log: initialize2",
			},
			want: KindPoolInit,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.logs); got != tc.want {
				t.Errorf("Classify(%v) = %v, want %v", tc.logs, got, tc.want)
			}
		})
	}
}

func TestSplitDeltas(t *testing.T) {
	deltas := []TokenDelta{
		{Mint: quote.USDCMint, Amount: 150, Decimals: 6},
		{Mint: testTokenMint, Amount: 10, Decimals: 9},
		{Mint: otherMint, Amount: 300, Decimals: 9},
	}

	token, stable := splitDeltas(deltas)
	if stable == nil || stable.Mint != quote.USDCMint {
		t.Fatalf("stable leg not recognized: %+v", stable)
	}
	if token == nil || token.Mint != otherMint {
		t.Errorf("token leg should be the largest non-stable delta, got %+v", token)
	}
}

func TestSplitDeltas_NoStableLeg(t *testing.T) {
	token, stable := splitDeltas([]TokenDelta{{Mint: testTokenMint, Amount: 10}})
	if stable != nil {
		t.Errorf("unexpected stable leg: %+v", stable)
	}
	if token == nil || token.Mint != testTokenMint {
		t.Errorf("token leg wrong: %+v", token)
	}
}
