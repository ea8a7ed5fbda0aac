package planner

import (
	"fmt"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

// BuildPlanPrompt embeds topic in the accountant planning request.
func BuildPlanPrompt(topic string) string {
	return fmt.Sprintf(
		"Konu: %s. Bu konuyla ilgili bir muhasebeci için haftalık çalışma planı ve toplantı önerileri oluştur. "+
			"JSON formatında 'title', 'date' (YYYY-MM-DD), 'type' (Seminar/Meeting/Plan) ve 'description' alanlarını içeren bir dizi döndür.",
		topic,
	)
}

// PlanSchema describes an array of planned events.
func PlanSchema() *domain.Schema {
	types := make([]string, 0, len(domain.EventTypes))
	for _, t := range domain.EventTypes {
		types = append(types, string(t))
	}

	return &domain.Schema{
		Type: domain.SchemaArray,
		Items: &domain.Schema{
			Type: domain.SchemaObject,
			Properties: map[string]*domain.Schema{
				"title":       {Type: domain.SchemaString},
				"date":        {Type: domain.SchemaString, Description: "ISO date, YYYY-MM-DD"},
				"type":        {Type: domain.SchemaString, Enum: types},
				"description": {Type: domain.SchemaString},
			},
			Required:         []string{"title", "date", "type"},
			PropertyOrdering: []string{"title", "date", "type", "description"},
		},
	}
}
