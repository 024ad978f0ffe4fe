package config

import (
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/normalization"
)

var stateFormatNormalizer = normalization.NewNormalizer(map[string]string{
	"json": "json",
	"yaml": "yaml",
	"yml":  "yaml",
	"xml":  "xml",
}, "")

// StateFormat returns the configured state format in canonical form, or "" to derive it from the path.
func (s StateConfig) StateFormat() string {
	return stateFormatNormalizer.Normalize(s.Format)
}
