package recognition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ilkoid/specmatch/pkg/utils"
)

// ErrNoJSON - в ответе модели не нашлось JSON-значения.
var ErrNoJSON = errors.New("no json in vision response")

// VisionResult - разобранный ответ vision-модели.
//
// PhoneName и CaseName заполняются только в объектной форме ответа
// и используются вне маппера (подбор модели телефона и чехла).
type VisionResult struct {
	PhoneName string           `json:"phoneName"`
	CaseName  string           `json:"caseName"`
	Specs     []RecognizedSpec `json:"specs"`
}

// rawSpec терпит числа и bool там, где ожидается строка.
type rawSpec struct {
	Category any `json:"category"`
	Value    any `json:"value"`
}

type rawObject struct {
	PhoneName any       `json:"phoneName"`
	CaseName  any       `json:"caseName"`
	Specs     []rawSpec `json:"specs"`
}

// ParseVisionResponse разбирает текст ответа модели.
//
// Поддерживаются две формы:
//
//	{"phoneName": "...", "caseName": "...", "specs": [{"category": "...", "value": "..."}]}
//	[{"category": "...", "value": "..."}]
//
// Markdown-обёртка и пояснительный текст вокруг JSON отбрасываются.
// Записи с пустыми полями не фильтруются: их пропускает Map.
func ParseVisionResponse(content string) (VisionResult, error) {
	payload := utils.ExtractJSON(utils.CleanJsonBlock(content))
	if payload == "" {
		return VisionResult{}, ErrNoJSON
	}

	if strings.HasPrefix(payload, "[") {
		var specs []rawSpec
		if err := json.Unmarshal([]byte(payload), &specs); err != nil {
			return VisionResult{}, fmt.Errorf("decode spec array: %w", err)
		}
		return VisionResult{Specs: convertSpecs(specs)}, nil
	}

	var obj rawObject
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return VisionResult{}, fmt.Errorf("decode vision object: %w", err)
	}
	return VisionResult{
		PhoneName: scalarString(obj.PhoneName),
		CaseName:  scalarString(obj.CaseName),
		Specs:     convertSpecs(obj.Specs),
	}, nil
}

func convertSpecs(raw []rawSpec) []RecognizedSpec {
	out := make([]RecognizedSpec, 0, len(raw))
	for _, r := range raw {
		out = append(out, RecognizedSpec{
			Category: scalarString(r.Category),
			Value:    scalarString(r.Value),
		})
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		// null, объекты и массивы считаем отсутствующим значением
		return ""
	}
}
