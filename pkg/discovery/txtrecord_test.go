package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTXT(t *testing.T) {
	txt := EncodeTXT(&ServiceInfo{Tags: 128, Version: "0.3.0", InstanceName: "plant-a"})

	assert.Equal(t, []string{"name=plant-a", "tags=128", "version=0.3.0"}, TXTRecordsToStrings(txt))
}

func TestDecodeTXT(t *testing.T) {
	info, err := DecodeTXT(StringsToTXTRecords([]string{"tags=12", "version=1.0.2", "extra"}))
	require.NoError(t, err)
	assert.Equal(t, 12, info.Tags)
	assert.Equal(t, "1.0.2", info.Version)
	assert.Empty(t, info.InstanceName)

	_, err = DecodeTXT(TXTRecordMap{TXTKeyVersion: "1.0"})
	assert.ErrorIs(t, err, ErrMissingRequired)

	_, err = DecodeTXT(TXTRecordMap{TXTKeyTags: "-3", TXTKeyVersion: "1.0"})
	assert.ErrorIs(t, err, ErrInvalidTXT)

	_, err = DecodeTXT(TXTRecordMap{TXTKeyTags: "3", TXTKeyVersion: "latest"})
	assert.ErrorIs(t, err, ErrInvalidTXT)

	_, err = DecodeTXT(TXTRecordMap{TXTKeyTags: "3"})
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "b=x=y", "flag", ""})
	assert.Equal(t, TXTRecordMap{"a": "1", "b": "x=y", "flag": ""}, txt)
}

func TestAdvertiserStopWithoutAdvertise(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{})
	assert.False(t, a.Advertising())
	a.Stop()
	require.NoError(t, a.Update(ServiceInfo{Tags: 1, Version: "x"}))
	assert.False(t, a.Advertising())
}
