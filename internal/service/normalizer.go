package service

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"property-agent/internal/logger"
	"property-agent/internal/metrics"
	"property-agent/internal/model"
	"property-agent/internal/utils"
)

// fieldSynonyms maps every accepted spelling of a filter, English and
// Spanish, onto its canonical key. Lookups go through utils.NormalizeKey, so
// accents, case and separators do not matter.
var fieldSynonyms = map[model.FieldKey][]string{
	model.FieldDistrict: {
		"district", "distrito", "zona", "zone", "location", "ubicacion", "barrio", "neighborhood",
	},
	model.FieldMinArea: {
		"min_area", "area_min", "area", "minimum_area", "area_minima", "metros", "m2",
		"metros_cuadrados", "square_meters", "size",
	},
	model.FieldStatus: {
		"status", "estado", "state", "condition",
	},
	model.FieldMaxBudget: {
		"max_budget", "budget", "max_price", "price", "presupuesto", "presupuesto_max",
		"presupuesto_maximo", "precio", "precio_max", "valor_comercial",
	},
	model.FieldBedrooms: {
		"bedrooms", "dormitorios", "habitaciones", "cuartos", "rooms", "bedroom_count",
	},
	model.FieldPetFriendly: {
		"pet_friendly", "pets", "mascotas", "permite_mascotas", "acepta_mascotas",
	},
	model.FieldBalcony:   {"balcony", "balcon"},
	model.FieldTerrace:   {"terrace", "terraza"},
	model.FieldFurnished: {"furnished", "amoblado", "amueblado"},
	model.FieldBathrooms: {"bathrooms", "banos", "banios", "bathroom_count"},
}

var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string]model.FieldKey {
	index := make(map[string]model.FieldKey)
	for key, names := range fieldSynonyms {
		for _, name := range names {
			index[utils.NormalizeKey(name)] = key
		}
	}
	return index
}

var (
	trueTokens  = map[string]bool{"true": true, "si": true, "yes": true, "verdadero": true}
	falseTokens = map[string]bool{"false": true, "no": true, "falso": true}
	numericRe   = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
)

// ExtractedField is one raw extraction entry after key resolution. Key is
// empty when the raw key matched no filter.
type ExtractedField struct {
	RawKey string
	Key    model.FieldKey
	Value  any
}

// Recognized reports whether the entry maps onto a filter
func (f ExtractedField) Recognized() bool {
	return f.Key != ""
}

// canonical reports whether the raw key was already the canonical name
func (f ExtractedField) canonical() bool {
	return f.Recognized() && utils.NormalizeKey(f.RawKey) == string(f.Key)
}

// ResolveFields tags every entry of raw, in sorted raw-key order.
func ResolveFields(raw map[string]any) []ExtractedField {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]ExtractedField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, ExtractedField{
			RawKey: k,
			Key:    synonymIndex[utils.NormalizeKey(k)],
			Value:  raw[k],
		})
	}
	return fields
}

// CoerceValue converts string encodings into typed values: numeric strings
// become int (no decimal point) or float64, boolean tokens become bool.
// Anything else is returned unchanged.
func CoerceValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)

	if numericRe.MatchString(trimmed) {
		if !strings.Contains(trimmed, ".") {
			if n, err := strconv.Atoi(trimmed); err == nil {
				return n
			}
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}

	token := utils.NormalizeToken(trimmed)
	if trueTokens[token] {
		return true
	}
	if falseTokens[token] {
		return false
	}
	return v
}

// Normalizer maps raw extraction output onto validated filters
type Normalizer struct {
	extractor Extractor
	log       logger.Logger
}

// NewNormalizer creates a Normalizer backed by extractor
func NewNormalizer(extractor Extractor, log logger.Logger) *Normalizer {
	return &Normalizer{extractor: extractor, log: log}
}

// Normalize extracts filters from text. A malformed extraction counts as
// "nothing said" and yields an empty set; a failed call is returned to the caller.
func (n *Normalizer) Normalize(ctx context.Context, text string, current model.FilterSet) (model.FilterSet, error) {
	raw, err := n.extractor.Extract(ctx, text)
	if err != nil {
		if errors.Is(err, ErrInvalidExtraction) {
			metrics.ExtractionFailures.WithLabelValues("invalid").Inc()
			n.log.Warn("ignoring malformed extraction", map[string]interface{}{"error": err.Error()})
			return model.FilterSet{}, nil
		}
		metrics.ExtractionFailures.WithLabelValues("transport").Inc()
		return model.FilterSet{}, err
	}
	return n.NormalizeExtraction(raw, current), nil
}

// NormalizeExtraction resolves, coerces and validates raw. Only the keys
// present in raw are returned, never the merged state. Essentials and
// optionals are validated as separate groups against current; a group with
// any invalid value is dropped whole for this turn.
func (n *Normalizer) NormalizeExtraction(raw map[string]any, current model.FilterSet) model.FilterSet {
	essentials := make(map[model.FieldKey]any)
	optionals := make(map[model.FieldKey]any)
	fromCanonical := make(map[model.FieldKey]bool)

	for _, field := range ResolveFields(raw) {
		if !field.Recognized() {
			n.log.Debug("dropping unrecognized extraction key", map[string]interface{}{"key": field.RawKey})
			continue
		}
		if field.Value == nil {
			continue
		}

		group := optionals
		if field.Key.IsEssential() {
			group = essentials
		}
		if _, seen := group[field.Key]; seen && (fromCanonical[field.Key] || !field.canonical()) {
			continue
		}
		group[field.Key] = CoerceValue(field.Value)
		fromCanonical[field.Key] = field.canonical()
	}

	var out model.FilterSet
	if len(essentials) > 0 {
		validated, err := model.ValidateEssentials(essentials, current.EssentialFilters)
		if err != nil {
			n.dropGroup("essential", essentials, err)
		} else {
			out.EssentialFilters = validated
		}
	}
	if len(optionals) > 0 {
		validated, err := model.ValidateOptionals(optionals, current.OptionalFilters)
		if err != nil {
			n.dropGroup("optional", optionals, err)
		} else {
			out.OptionalFilters = validated
		}
	}
	return out
}

func (n *Normalizer) dropGroup(group string, values map[model.FieldKey]any, err error) {
	metrics.FilterGroupsDropped.WithLabelValues(group).Inc()
	n.log.Warn("dropping filter group", map[string]interface{}{
		"group":  group,
		"fields": len(values),
		"error":  err.Error(),
	})
}
