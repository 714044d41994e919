package main

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/convert"
	"github.com/meikuraledutech/flowgraph/expr"
	"github.com/meikuraledutech/flowgraph/log"
	"github.com/meikuraledutech/flowgraph/registry"
	"github.com/meikuraledutech/flowgraph/validate"
	"github.com/meikuraledutech/flowgraph/wire"
)

type api struct {
	store flowgraph.Store
	reg   *registry.Registry
}

func newApp(store flowgraph.Store, reg *registry.Registry) *fiber.App {
	a := &api{store: store, reg: reg}
	app := fiber.New(fiber.Config{AppName: "flowgraph"})

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", a.createSchema)
	app.Delete("/schema", a.dropSchema)

	// ── Workflows ─────────────────────────────────────────────────────
	app.Get("/workflows", a.listWorkflows)
	app.Post("/workflows", a.createWorkflow)
	app.Get("/workflows/:id", a.getWorkflow)
	app.Put("/workflows/:id", a.updateWorkflow)
	app.Delete("/workflows/:id", a.deleteWorkflow)
	app.Get("/workflows/:id/export", a.exportWorkflow)

	// ── Conversion ────────────────────────────────────────────────────
	app.Post("/compile", a.compile)
	app.Post("/import", a.importDocument)
	app.Post("/validate", a.validateDocument)
	app.Post("/evaluate", a.evaluate)

	// ── Registry ──────────────────────────────────────────────────────
	app.Get("/components", a.searchComponents)
	app.Get("/components/check", a.checkComponent)

	return app
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		graphErr *convert.InvalidGraphError
		docErr   *convert.InvalidDocumentError
		refErr   *expr.ReferenceError
	)
	switch {
	case errors.Is(err, flowgraph.ErrWorkflowNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, flowgraph.ErrCycleDetected),
		errors.Is(err, flowgraph.ErrUnsupportedNodeType),
		errors.Is(err, flowgraph.ErrUnsupportedComponent),
		errors.Is(err, convert.ErrEmptyWorkflow),
		errors.As(err, &graphErr),
		errors.As(err, &docErr),
		errors.As(err, &refErr):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func fail(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	}
	body := fiber.Map{"error": err.Error()}
	var (
		graphErr *convert.InvalidGraphError
		docErr   *convert.InvalidDocumentError
	)
	switch {
	case errors.As(err, &graphErr):
		body["validation"] = graphErr.Result
	case errors.As(err, &docErr):
		body["validation"] = docErr.Result
	}
	return c.Status(status).JSON(body)
}

func formatParam(c fiber.Ctx, data []byte) (wire.Format, error) {
	raw := c.Query("format")
	if raw == "" && data != nil {
		return wire.DetectFormat(data), nil
	}
	return wire.ParseFormat(raw)
}

func contentType(f wire.Format) string {
	if f == wire.FormatText {
		return "application/yaml; charset=utf-8"
	}
	return fiber.MIMEApplicationJSONCharsetUTF8
}

func (a *api) createSchema(c fiber.Ctx) error {
	if err := a.store.CreateSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (a *api) dropSchema(c fiber.Ctx) error {
	if err := a.store.DropSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema dropped"})
}

func (a *api) listWorkflows(c fiber.Ctx) error {
	list, err := a.store.ListWorkflows(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(list)
}

func (a *api) createWorkflow(c fiber.Ctx) error {
	var w flowgraph.Workflow
	if err := c.Bind().JSON(&w); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	result, err := a.store.CreateWorkflow(c.Context(), &w)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (a *api) getWorkflow(c fiber.Ctx) error {
	w, err := a.store.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if w == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "workflow not found"})
	}
	return c.JSON(w)
}

func (a *api) updateWorkflow(c fiber.Ctx) error {
	var w flowgraph.Workflow
	if err := c.Bind().JSON(&w); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	w.ID = c.Params("id")
	if err := a.store.UpdateWorkflow(c.Context(), &w); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *api) deleteWorkflow(c fiber.Ctx) error {
	if err := a.store.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *api) exportWorkflow(c fiber.Ctx) error {
	format, err := formatParam(c, nil)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	w, err := a.store.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if w == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "workflow not found"})
	}
	data, _, err := convert.Export(w, format, convert.WithRegistry(a.reg))
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType(format))
	return c.Send(data)
}

type compileResponse struct {
	Document json.RawMessage `json:"document,omitempty"`
	Text     string          `json:"text,omitempty"`
	Mapping  any             `json:"mapping"`
	Warnings []string        `json:"warnings"`
}

func (a *api) compile(c fiber.Ctx) error {
	format, err := formatParam(c, nil)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	var w flowgraph.Workflow
	if err := c.Bind().JSON(&w); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	data, res, err := convert.Export(&w, format, convert.WithRegistry(a.reg))
	if err != nil {
		return fail(c, err)
	}
	resp := compileResponse{Mapping: res.Mapping, Warnings: res.Warnings}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if format == wire.FormatText {
		resp.Text = string(data)
	} else {
		resp.Document = data
	}
	return c.JSON(resp)
}

func (a *api) importDocument(c fiber.Ctx) error {
	data := c.Body()
	format, err := formatParam(c, data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	res, err := convert.Import(data, format, convert.WithRegistry(a.reg))
	if err != nil {
		return fail(c, err)
	}
	status := fiber.StatusOK
	if c.Query("save") == "true" {
		if _, err := a.store.CreateWorkflow(c.Context(), res.Workflow); err != nil {
			return fail(c, err)
		}
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"workflow":      res.Workflow,
		"validation":    res.Validation,
		"compatibility": res.Compatibility,
	})
}

func (a *api) validateDocument(c fiber.Ctx) error {
	data := c.Body()
	format, err := formatParam(c, data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	doc, res := validate.Bytes(data, format, a.reg)
	body := fiber.Map{"validation": res}
	if doc != nil {
		body["compatibility"] = validate.Compatibility(doc, a.reg)
	}
	return c.JSON(body)
}

type evaluateRequest struct {
	Expression json.RawMessage `json:"expression"`
	Context    expr.Context    `json:"context"`
}

func (a *api) evaluate(c fiber.Ctx) error {
	var req evaluateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if len(req.Expression) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expression is required"})
	}
	e, err := expr.FromJSON(req.Expression)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	v, err := expr.Evaluate(e, &req.Context)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"value": v})
}

func (a *api) searchComponents(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit", registry.DefaultSearchLimit)
	return c.JSON(a.reg.Search(c.Query("q"), limit))
}

func (a *api) checkComponent(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path is required"})
	}
	err := a.reg.ValidatePath(path)
	var perr *registry.PathError
	switch {
	case err == nil:
		comp, _ := a.reg.Get(path)
		return c.JSON(fiber.Map{"valid": true, "component": comp})
	case errors.As(err, &perr):
		return c.JSON(fiber.Map{
			"valid":      false,
			"error":      perr.Error(),
			"suggestion": perr.Suggestion,
			"known":      perr.Known,
		})
	}
	return fail(c, err)
}
