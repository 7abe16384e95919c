package service

import (
	"fmt"

	"property-agent/internal/model"
)

var fieldQuestions = map[model.FieldKey]string{
	model.FieldDistrict:  "¿En qué distrito te gustaría buscar la propiedad?",
	model.FieldMinArea:   "¿Cuál es el área mínima que necesitas (en m²)?",
	model.FieldStatus:    "¿Qué estado de propiedad prefieres? (disponible, ocupada, en mantenimiento o vendida)",
	model.FieldMaxBudget: "¿Cuál es tu presupuesto máximo?",
	model.FieldBedrooms:  "¿Cuántos dormitorios necesitas?",
}

const (
	replyNoResults        = "No encontré propiedades que coincidan con tus criterios. ¿Quieres ajustar algún filtro?"
	replyResultsFormat    = "Encontré %d propiedades que coinciden con tu búsqueda."
	replyOneResult        = "Encontré 1 propiedad que coincide con tu búsqueda."
	replySearchFailed     = "Lo siento, ocurrió un problema al buscar propiedades. Por favor, inténtalo de nuevo más tarde."
	replyExtractionFailed = "Lo siento, no pude procesar tu mensaje en este momento. ¿Puedes intentarlo de nuevo?"
)

// QuestionFor returns the fixed question asking for an essential field
func QuestionFor(key model.FieldKey) string {
	if q, ok := fieldQuestions[key]; ok {
		return q
	}
	return fmt.Sprintf("¿Puedes indicarme el valor de %s?", key)
}

// ResultReply reports how many properties a search found
func ResultReply(count int) string {
	switch count {
	case 0:
		return replyNoResults
	case 1:
		return replyOneResult
	default:
		return fmt.Sprintf(replyResultsFormat, count)
	}
}
