package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []TickerRecord {
	return []TickerRecord{
		{OfficialName: "Infosys Limited", Ticker: "INFY", Sector: "IT"},
		{OfficialName: "Wipro Limited", Ticker: "WIPRO", Sector: "IT"},
		{OfficialName: "State Bank of India", Ticker: "SBIN", Sector: "Banking"},
		{OfficialName: "Larsen & Toubro Limited", Ticker: "LT", Sector: "Construction"},
		{OfficialName: "Bajaj-Auto Ltd.", Ticker: "BAJAJ-AUTO", Sector: "Auto"},
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Infosys   Limited ": "infosys limited",
		"Bajaj-Auto Ltd.":      "bajaj auto ltd",
		"Larsen & Toubro":      "larsen toubro",
		"BYJU'S":               "byjus",
		"Ｉｎｆｏｓｙｓ":              "infosys",
		"A/B Corp":             "a b corp",
		"...":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestStripSuffixes(t *testing.T) {
	assert.Equal(t, "infosys", StripSuffixes("infosys limited"))
	assert.Equal(t, "acme", StripSuffixes("acme pvt ltd"))
	assert.Equal(t, "ltd", StripSuffixes("ltd"))
	assert.Equal(t, "state bank of india", StripSuffixes("state bank of india"))
}

func TestLookupExactRoundTrip(t *testing.T) {
	reg, err := New(sampleRecords(), nil)
	require.NoError(t, err)

	for _, rec := range reg.Records() {
		got, ok := reg.LookupExact(rec.OfficialName)
		require.True(t, ok, "official name %q should resolve", rec.OfficialName)
		assert.Equal(t, rec, got)
	}
}

func TestLookupExactSuffixKey(t *testing.T) {
	reg, err := New(sampleRecords(), nil)
	require.NoError(t, err)

	rec, ok := reg.LookupExact("infosys")
	require.True(t, ok)
	assert.Equal(t, "INFY", rec.Ticker)

	rec, ok = reg.LookupExact("Infosys Ltd")
	require.True(t, ok)
	assert.Equal(t, "INFY", rec.Ticker)

	rec, ok = reg.LookupExact("Bajaj Auto")
	require.True(t, ok)
	assert.Equal(t, "BAJAJ-AUTO", rec.Ticker)

	_, ok = reg.LookupExact("Tata Motors")
	assert.False(t, ok)
}

func TestSuffixKeyNeverShadowsFullKey(t *testing.T) {
	reg, err := New([]TickerRecord{
		{OfficialName: "Acme", Ticker: "ACME"},
		{OfficialName: "Acme Limited", Ticker: "ACMELTD"},
	}, nil)
	require.NoError(t, err)

	rec, ok := reg.LookupExact("Acme")
	require.True(t, ok)
	assert.Equal(t, "ACME", rec.Ticker)

	rec, ok = reg.LookupExact("Acme Limited")
	require.True(t, ok)
	assert.Equal(t, "ACMELTD", rec.Ticker)
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]TickerRecord{
		{OfficialName: "A", Ticker: "X"},
		{OfficialName: "B", Ticker: "x"},
	}, nil)
	require.ErrorIs(t, err, ErrDuplicateTicker)

	_, err = New([]TickerRecord{
		{OfficialName: "A", Ticker: "X"},
		{OfficialName: "A", Ticker: "Y"},
	}, nil)
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestIsBlockedNormalised(t *testing.T) {
	reg := Empty([]string{"byju's", "Reserve Bank of India", "RBI"})
	assert.True(t, reg.IsBlocked("BYJUS"))
	assert.True(t, reg.IsBlocked("reserve  bank of india"))
	assert.True(t, reg.IsBlocked("R.B.I."))
	assert.False(t, reg.IsBlocked("Infosys"))
}

func TestNilRegistryIsEmpty(t *testing.T) {
	var reg *Registry
	_, ok := reg.LookupExact("Infosys")
	assert.False(t, ok)
	assert.False(t, reg.IsBlocked("rbi"))
	assert.Zero(t, reg.Len())
	assert.Nil(t, reg.Records())
}

func TestHolderReplace(t *testing.T) {
	h := NewHolder(nil)
	assert.Zero(t, h.Load().Len())

	reg, err := New(sampleRecords(), nil)
	require.NoError(t, err)
	h.Replace(reg)
	assert.Equal(t, 5, h.Load().Len())

	rec, ok := h.Load().ByTicker("sbin")
	require.True(t, ok)
	assert.Equal(t, "State Bank of India", rec.OfficialName)
}

func TestReadCSV(t *testing.T) {
	data := "SYMBOL,NAME OF COMPANY, SERIES\nINFY,Infosys Limited,EQ\n,Missing Ticker,EQ\nWIPRO, Wipro Limited ,EQ\n"
	records, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, TickerRecord{OfficialName: "Wipro Limited", Ticker: "WIPRO"}, records[1])
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
}

func TestLoadFromCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EQUITY_L.csv")
	require.NoError(t, os.WriteFile(path, []byte("SYMBOL,NAME OF COMPANY,SECTOR\nINFY,Infosys Limited,IT\nTCS,Tata Consultancy Services Limited,IT\n"), 0o644))

	reg, err := Load(context.Background(), CSVSource{Path: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	rec, ok := reg.ByTicker("TCS")
	require.True(t, ok)
	assert.Equal(t, "IT", rec.Sector)

	_, err = Load(context.Background(), CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}, nil)
	require.Error(t, err)
}
