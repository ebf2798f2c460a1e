package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/multistream/internal/api/models"
	"github.com/smazurov/multistream/internal/units"
)

// registerTemplateRoutes registers destination template endpoints
func (s *Server) registerTemplateRoutes() {
	// List templates
	huma.Register(s.api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/api/templates",
		Summary:     "List Templates",
		Description: "Get builtin presets and custom destination templates",
		Tags:        []string{"templates"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.TemplateListResponse, error) {
		templates := s.units.ListTemplates()

		apiTemplates := make([]models.TemplateData, len(templates))
		for i, template := range templates {
			apiTemplates[i] = domainToAPITemplate(template)
		}

		return &models.TemplateListResponse{
			Body: models.TemplateListData{
				Templates: apiTemplates,
				Count:     len(apiTemplates),
			},
		}, nil
	})

	// Get specific template
	huma.Register(s.api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/api/templates/{template_id}",
		Summary:     "Get Template",
		Description: "Get details of a specific template",
		Tags:        []string{"templates"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id" example:"builtin_youtube_1080p60" doc:"Template identifier"`
	}) (*models.TemplateResponse, error) {
		template, err := s.units.GetTemplate(input.TemplateID)
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.TemplateResponse{
			Body: domainToAPITemplate(*template),
		}, nil
	})

	// Create custom template
	huma.Register(s.api, huma.Operation{
		OperationID: "create-template",
		Method:      http.MethodPost,
		Path:        "/api/templates",
		Summary:     "Create Template",
		Description: "Create a custom destination template",
		Tags:        []string{"templates"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.TemplateCreateRequest) (*models.TemplateResponse, error) {
		template, err := s.units.CreateTemplate(units.TemplateCreateParams{
			Name:        input.Body.Name,
			Platform:    units.Platform(input.Body.Platform),
			Orientation: units.Orientation(input.Body.Orientation),
			Encoding:    apiToEncoding(input.Body.Encoding),
		})
		if err != nil {
			return nil, s.mapUnitError(err)
		}

		return &models.TemplateResponse{
			Body: domainToAPITemplate(*template),
		}, nil
	})

	// Delete custom template
	huma.Register(s.api, huma.Operation{
		OperationID: "delete-template",
		Method:      http.MethodDelete,
		Path:        "/api/templates/{template_id}",
		Summary:     "Delete Template",
		Description: "Delete a custom template; builtin presets cannot be deleted",
		Tags:        []string{"templates"},
		Errors:      []int{401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id" example:"tmpl_1712345678_4f2a1c" doc:"Template identifier"`
	}) (*struct{}, error) {
		if err := s.units.DeleteTemplate(input.TemplateID); err != nil {
			return nil, s.mapUnitError(err)
		}
		return &struct{}{}, nil
	})
}

// domainToAPITemplate converts a domain template to API data
func domainToAPITemplate(template units.Template) models.TemplateData {
	return models.TemplateData{
		ID:          template.ID,
		Name:        template.Name,
		Platform:    string(template.Platform),
		Orientation: string(template.Orientation),
		Encoding:    encodingToAPI(template.Encoding),
		Builtin:     template.Builtin,
	}
}
