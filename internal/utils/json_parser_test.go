package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAIObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name:  "Pure JSON",
			input: `{"district": "San Isidro", "bedrooms": 2}`,
			want:  map[string]interface{}{"district": "San Isidro", "bedrooms": float64(2)},
		},
		{
			name:  "JSON in markdown code block",
			input: "```json\n{\"presupuesto\": \"250000\"}\n```",
			want:  map[string]interface{}{"presupuesto": "250000"},
		},
		{
			name:  "JSON with surrounding text",
			input: `Claro, aquí está: {"balcon": true} ¡Listo!`,
			want:  map[string]interface{}{"balcon": true},
		},
		{
			name:  "Trailing comma",
			input: `{"dormitorios": 3,}`,
			want:  map[string]interface{}{"dormitorios": float64(3)},
		},
		{
			name:  "Unquoted keys",
			input: `{estado: "disponible"}`,
			want:  map[string]interface{}{"estado": "disponible"},
		},
		{
			name:  "Single quotes",
			input: `{'distrito': 'Lince'}`,
			want:  map[string]interface{}{"distrito": "Lince"},
		},
		{
			name:  "Braces inside strings",
			input: `{"note": "casa {grande}"}`,
			want:  map[string]interface{}{"note": "casa {grande}"},
		},
		{name: "Empty string", input: "", wantErr: true},
		{name: "Prose only", input: "no entiendo la pregunta", wantErr: true},
		{name: "JSON string", input: `"not a dict"`, wantErr: true},
		{name: "JSON array", input: `[1, 2, 3]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAIObject(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAIObject_NonObjectIsErrNotObject(t *testing.T) {
	_, err := ParseAIObject(`"not a dict"`)
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ParseAIObject(`42`)
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestExtractFromMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "json tag", input: "```json\n{\"test\": true}\n```", want: `{"test": true}`},
		{name: "no tag", input: "```\n{\"test\": true}\n```", want: `{"test": true}`},
		{name: "fence without json", input: "```\nhola\n```", want: ""},
		{name: "no fence", input: `{"test": true}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractFromMarkdown(tt.input))
		})
	}
}

func TestExtractBalancedBraces(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 2}}`, extractBalancedBraces(`{"a": {"b": 2}} tail`, '{', '}'))
	assert.Equal(t, `[1, [2], 3]`, extractBalancedBraces(`[1, [2], 3]`, '[', ']'))
	assert.Equal(t, "", extractBalancedBraces(`{"a": 1`, '{', '}'))
}
