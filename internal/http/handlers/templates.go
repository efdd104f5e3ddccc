package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/cliparr/internal/catalog"
	"github.com/jmylchreest/cliparr/internal/models"
)

// TemplatesHandler exposes the caption style catalog.
type TemplatesHandler struct {
	catalog     *catalog.Catalog
	defaultName string
}

// NewTemplatesHandler creates a new templates handler. defaultName is the
// template applied to jobs that name none.
func NewTemplatesHandler(c *catalog.Catalog, defaultName string) *TemplatesHandler {
	if defaultName == "" {
		defaultName = catalog.DefaultTemplateName
	}
	return &TemplatesHandler{
		catalog:     c,
		defaultName: defaultName,
	}
}

// Register registers the template routes with the API.
func (h *TemplatesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTemplates",
		Method:      "GET",
		Path:        "/templates",
		Summary:     "List caption templates",
		Description: "Returns the caption style catalog and the available animation recipes",
		Tags:        []string{"Templates"},
	}, h.List)
}

// ListTemplatesInput is the input for listing templates.
type ListTemplatesInput struct{}

// ListTemplatesOutput is the output for listing templates.
type ListTemplatesOutput struct {
	Body struct {
		Templates []TemplateEntry `json:"templates"`
		Recipes   []string        `json:"animation_styles"`
		Default   string          `json:"default_template"`
	}
}

// List returns the style catalog.
func (h *TemplatesHandler) List(ctx context.Context, input *ListTemplatesInput) (*ListTemplatesOutput, error) {
	templates := h.catalog.List()

	resp := &ListTemplatesOutput{}
	resp.Body.Templates = make([]TemplateEntry, 0, len(templates))
	for _, t := range templates {
		words := t.WordsPerLine
		if words == 0 {
			words = t.MaxWordsPerLine
		}
		resp.Body.Templates = append(resp.Body.Templates, TemplateEntry{
			Name:         t.Name,
			Recipe:       string(t.Recipe),
			FontName:     t.FontName,
			FontSize:     t.FontSize,
			WordsPerLine: words,
			AllCaps:      t.AllCaps,
		})
	}

	resp.Body.Recipes = recipeNames()
	resp.Body.Default = h.defaultName
	return resp, nil
}

func recipeNames() []string {
	recipes := []models.Recipe{
		models.RecipeProgressive, models.RecipeKaraoke, models.RecipeExplode,
		models.RecipeTypewriter, models.RecipeBubble, models.RecipeImpact,
		models.RecipeGlitch, models.RecipeRainbow, models.RecipeSpeaker,
	}
	names := make([]string, len(recipes))
	for i, r := range recipes {
		names[i] = string(r)
	}
	return names
}
