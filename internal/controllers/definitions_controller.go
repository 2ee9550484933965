package controllers

import (
	"net/http"

	"github.com/RealZimboGuy/gopherstep/internal/util"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/models"
)

type DefinitionsController struct {
	Engine Engine
}

func NewDefinitionsController(e Engine) *DefinitionsController {
	return &DefinitionsController{Engine: e}
}

func (c *DefinitionsController) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs := c.Engine.ListDefinitions()
	out := make([]models.DefinitionSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, models.SummarizeDefinition(d))
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

// handleGetDefinition returns the stored document and its mermaid flowchart.
func (c *DefinitionsController) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := c.Engine.GetDefinition(r.PathValue("name"))
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, def)
}
