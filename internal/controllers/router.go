package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *ExecutionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/executions", c.handleStartExecution)
	mux.HandleFunc("GET /api/executions", c.handleListExecutions)
	mux.HandleFunc("GET /api/executions/{id}", c.handleGetExecution)
	mux.HandleFunc("GET /api/executions/{id}/history", c.handleGetHistory)
	mux.HandleFunc("POST /api/executions/{id}/abort", c.handleAbortExecution)
}
func (c *DefinitionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/definitions", c.handleListDefinitions)
	mux.HandleFunc("GET /api/definitions/{name}", c.handleGetDefinition)
}
func (c *ExecutorsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/executors", c.handleGetExecutors)
}

// RegisterAll wires every API route onto mux.
func RegisterAll(mux *http.ServeMux, e Engine) {
	NewExecutionsController(e).RegisterRoutes(mux)
	NewDefinitionsController(e).RegisterRoutes(mux)
	NewExecutorsController(e).RegisterRoutes(mux)
}
