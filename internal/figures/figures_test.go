package figures

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClassifiesByContext(t *testing.T) {
	text := "Infosys reported a net profit rise of 12.5% to Rs 6,500 crore. " +
		"Quarterly revenue grew 8 percent year on year. " +
		"Separately, the company signed a deal worth $1.5 billion with a European bank."

	got := Extract(text)
	assert.Equal(t, "12.5%", got.ProfitChangePercent)
	assert.Equal(t, "8 percent", got.RevenueChangePercent)
	assert.Equal(t, "Rs 6,500 crore", got.ProfitAmount)
	assert.Equal(t, "$1.5 billion", got.DealSize)
	assert.Empty(t, got.OtherPercents)
}

func TestExtractCapsOtherFigures(t *testing.T) {
	text := "Shares rose 1%. Later 2% more. " +
		"Then a further 3% in the afternoon session and 4% after hours on strong volumes."

	got := Extract(text)
	assert.Equal(t, []string{"1%", "2%", "3%"}, got.OtherPercents)
}

func TestExtractPATIsWholeWord(t *testing.T) {
	got := Extract("The firm filed a patent and separately raised ₹500 crore from investors.")
	assert.Empty(t, got.ProfitAmount)
	assert.Equal(t, []string{"₹500 crore"}, got.OtherFigures)

	got = Extract("Its PAT came in at ₹500 crore for the quarter.")
	assert.Equal(t, "₹500 crore", got.ProfitAmount)
}

func TestExtractEmpty(t *testing.T) {
	assert.True(t, Extract("").IsEmpty())
	assert.True(t, Extract("No numbers here at all.").IsEmpty())
	assert.False(t, Extract("Up 5%").IsEmpty())
}
