package recognition

import (
	"testing"

	"github.com/ilkoid/specmatch/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisionResponse_ObjectShape(t *testing.T) {
	content := "```json\n" + `{
		"phoneName": "iPhone 15 Pro",
		"caseName": "惡魔防摔殼 PRO 3",
		"specs": [
			{"category": "邊框顏色", "value": "黑色"},
			{"category": "按鍵", "value": 2}
		]
	}` + "\n```"

	res, err := ParseVisionResponse(content)
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15 Pro", res.PhoneName)
	assert.Equal(t, "惡魔防摔殼 PRO 3", res.CaseName)
	assert.Equal(t, []RecognizedSpec{
		{Category: "邊框顏色", Value: "黑色"},
		{Category: "按鍵", Value: "2"},
	}, res.Specs)
}

func TestParseVisionResponse_ArrayShape(t *testing.T) {
	res, err := ParseVisionResponse(`規格如下: [{"category":"鏡頭框","value":"銀"},{"category":null,"value":"x"}]`)
	require.NoError(t, err)
	assert.Empty(t, res.PhoneName)
	assert.Equal(t, []RecognizedSpec{
		{Category: "鏡頭框", Value: "銀"},
		{Category: "", Value: "x"},
	}, res.Specs)
}

func TestParseVisionResponse_EmptySpecs(t *testing.T) {
	res, err := ParseVisionResponse(`{"phoneName":"","caseName":"","specs":[]}`)
	require.NoError(t, err)
	assert.NotNil(t, res.Specs)
	assert.Empty(t, res.Specs)
}

func TestParseVisionResponse_Errors(t *testing.T) {
	_, err := ParseVisionResponse("I cannot read this screenshot.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseVisionResponse(`{"specs": [{"category": "a", "value": }`)
	assert.Error(t, err)

	_, err = ParseVisionResponse(`[1, 2]`)
	assert.Error(t, err)
}

func TestParseVisionResponse_FeedsMapper(t *testing.T) {
	res, err := ParseVisionResponse(`{"specs":[{"category":"外框","value":"透明"}]}`)
	require.NoError(t, err)

	groups := []catalog.OptionGroup{frameGroup(catalog.OptionItemRef{ID: "o1", Name: "透明"})}
	out := Map(res.Specs, groups, nil)
	assert.Equal(t, "o1", out.NextSelection["devilcase_pro3:attr1"])
}
