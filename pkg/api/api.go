// Package api implements the REST API for deploying and running scripts, and
// the request-bound /run endpoint that lets a script answer HTTP requests.
package api

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/bigrun/pkg/lexer"
	"github.com/lemonberrylabs/bigrun/pkg/runtime"
	"github.com/lemonberrylabs/bigrun/pkg/stdlib"
	"github.com/lemonberrylabs/bigrun/pkg/store"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// Options configures how the server runs scripts.
type Options struct {
	Dir     string        // include base for scripts
	DataDir string        // bound to the Dir global when set
	Timeout time.Duration // per run; zero means no limit
	Debug   bool
	Heal    bool
}

// Server is the script service.
type Server struct {
	app   *fiber.App
	store *store.Store
	opts  Options

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // running executions
}

// New creates a new API server.
func New(s *store.Store, opts Options) *Server {
	srv := &Server{
		store:   s,
		opts:    opts,
		cancels: make(map[string]context.CancelFunc),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	// Scripts API
	app.Post("/v1/scripts", srv.createScript)
	app.Get("/v1/scripts", srv.listScripts)
	app.Get("/v1/scripts/:name", srv.getScript)
	app.Put("/v1/scripts/:name", srv.updateScript)
	app.Delete("/v1/scripts/:name", srv.deleteScript)

	// Executions API
	app.Post("/v1/scripts/:name/executions", srv.createExecution)
	app.Get("/v1/scripts/:name/executions", srv.listExecutions)
	app.Get("/v1/executions/:id", srv.getExecution)
	app.Post("/v1/executions/:id\\:cancel", srv.cancelExecution)

	// Request-bound runs
	app.All("/run/:name", srv.runRequest)
	app.All("/run/:name/*", srv.runRequest)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown cancels running executions and shuts the server down.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// Store returns the script store behind the server.
func (s *Server) Store() *store.Store {
	return s.store
}

func apiError(c *fiber.Ctx, code int, status, msg string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
			"status":  status,
		},
	})
}

func notFound(c *fiber.Ctx, err error) error {
	return apiError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
}

// validateSource lexes src and runs the reserved-name check. The returned
// text holds the diagnostics of a rejected script.
func validateSource(src string) (string, bool) {
	var diag bytes.Buffer
	ok := runtime.Validate(lexer.Tokenize(src), &diag)
	return strings.TrimSpace(diag.String()), ok
}

// --- Script Handlers ---

type scriptRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func (s *Server) createScript(c *fiber.Ctx) error {
	var req scriptRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Name == "" {
		req.Name = c.Query("name")
	}
	if !validScriptName.MatchString(req.Name) {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid script name %q", req.Name))
	}
	if req.Source == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "source is required")
	}
	if diag, ok := validateSource(req.Source); !ok {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", diag)
	}

	sc, err := s.store.CreateScript(req.Name, req.Source)
	if err != nil {
		return apiError(c, fiber.StatusConflict, "ALREADY_EXISTS", err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(sc)
}

func (s *Server) listScripts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"scripts": s.store.ListScripts()})
}

func (s *Server) getScript(c *fiber.Ctx) error {
	sc, err := s.store.GetScript(c.Params("name"))
	if err != nil {
		return notFound(c, err)
	}
	return c.JSON(sc)
}

func (s *Server) updateScript(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, err := s.store.GetScript(name); err != nil {
		return notFound(c, err)
	}
	var req scriptRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if diag, ok := validateSource(req.Source); !ok {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", diag)
	}
	sc, _ := s.store.PutScript(name, req.Source)
	return c.JSON(sc)
}

func (s *Server) deleteScript(c *fiber.Ctx) error {
	if err := s.store.DeleteScript(c.Params("name")); err != nil {
		return notFound(c, err)
	}
	return c.JSON(fiber.Map{"name": c.Params("name"), "deleted": true})
}

// --- Execution Handlers ---

type executionRequest struct {
	Args []string `json:"args"`
}

func (s *Server) createExecution(c *fiber.Ctx) error {
	var req executionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	sc, err := s.store.GetScript(c.Params("name"))
	if err != nil {
		return notFound(c, err)
	}
	exec, err := s.store.CreateExecution(sc.Name, req.Args)
	if err != nil {
		return notFound(c, err)
	}

	ctx, cancel := s.runContext()
	s.track(exec.ID, cancel)
	go func() {
		defer s.untrack(exec.ID)
		s.runExecution(ctx, exec, sc.Source)
	}()

	return c.Status(fiber.StatusOK).JSON(exec)
}

// Execute runs a deployed script to completion and returns its final
// execution record. Scheduled runs use it.
func (s *Server) Execute(ctx context.Context, script string, args []string) (*store.Execution, error) {
	sc, err := s.store.GetScript(script)
	if err != nil {
		return nil, err
	}
	exec, err := s.store.CreateExecution(sc.Name, args)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	s.track(exec.ID, cancel)
	defer s.untrack(exec.ID)
	s.runExecution(ctx, exec, sc.Source)
	return s.store.GetExecution(exec.ID)
}

func (s *Server) runContext() (context.Context, context.CancelFunc) {
	return s.withTimeout(context.Background())
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Server) track(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

// newInterpreter builds an interpreter with a fresh verb registry, so
// event queues and network settings are private to one run.
func (s *Server) newInterpreter(out *bytes.Buffer, args []string, globals map[string]string) *runtime.Interpreter {
	if s.opts.DataDir != "" {
		if globals == nil {
			globals = make(map[string]string)
		}
		globals["Dir"] = s.opts.DataDir
	}
	return runtime.New(runtime.Options{
		Stdout:  out,
		Stdin:   strings.NewReader(""),
		Args:    args,
		Verbs:   stdlib.NewRegistry(),
		Dir:     s.opts.Dir,
		Debug:   s.opts.Debug,
		Heal:    s.opts.Heal,
		Globals: globals,
	})
}

func (s *Server) runExecution(ctx context.Context, exec *store.Execution, source string) {
	var out bytes.Buffer
	in := s.newInterpreter(&out, exec.Args, nil)
	halt := in.RunSource(ctx, source)
	in.Wait()

	switch {
	case halt != nil && halt.HasTag(types.TagCancelledError):
		_ = s.store.CancelExecution(exec.ID)
	case halt != nil:
		log.Printf("Execution %s of %q failed: %v", exec.ID, exec.Script, halt)
		_ = s.store.FailExecution(exec.ID, out.String(), halt)
	default:
		_ = s.store.CompleteExecution(exec.ID, out.String(), in.Globals())
	}
}

func (s *Server) getExecution(c *fiber.Ctx) error {
	exec, err := s.store.GetExecution(c.Params("id"))
	if err != nil {
		return notFound(c, err)
	}
	return c.JSON(exec)
}

func (s *Server) listExecutions(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, err := s.store.GetScript(name); err != nil {
		return notFound(c, err)
	}
	return c.JSON(fiber.Map{"executions": s.store.ListExecutions(name)})
}

func (s *Server) cancelExecution(c *fiber.Ctx) error {
	id := c.Params("id")

	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
	}
	s.mu.Unlock()

	if err := s.store.CancelExecution(id); err != nil {
		if strings.Contains(err.Error(), "not active") {
			return apiError(c, fiber.StatusBadRequest, "FAILED_PRECONDITION", err.Error())
		}
		return notFound(c, err)
	}

	exec, _ := s.store.GetExecution(id)
	return c.JSON(exec)
}

// --- Request-bound runs ---

// runRequest runs a script against the current HTTP request. The script
// sees the request through RequestBody, RequestPath and RequestMethod and
// answers with the reply verbs.
func (s *Server) runRequest(c *fiber.Ctx) error {
	sc, err := s.store.GetScript(c.Params("name"))
	if err != nil {
		return notFound(c, err)
	}

	var out bytes.Buffer
	in := s.newInterpreter(&out, nil, map[string]string{
		stdlib.RequestBody:   string(c.Body()),
		stdlib.RequestPath:   c.OriginalURL(),
		stdlib.RequestMethod: c.Method(),
	})
	ctx, cancel := s.runContext()
	defer cancel()
	halt := in.RunSource(ctx, sc.Source)
	in.Wait()
	if halt != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": halt, "output": out.String()})
	}

	globals := in.Globals()
	status := fiber.StatusOK
	if n, err := strconv.Atoi(globals[stdlib.ResponseStatus]); err == nil && n >= 100 && n <= 599 {
		status = n
	}
	for k, v := range headerMap(globals[stdlib.ResponseHeader]) {
		c.Set(k, v)
	}
	c.Status(status)
	if file := globals[stdlib.ResponseFile]; file != "" {
		return c.SendFile(file)
	}
	if body, ok := globals[stdlib.ResponseBody]; ok {
		return c.SendString(body)
	}
	return c.SendString(out.String())
}

// headerMap reads the JSON object the "reply note" verb builds.
func headerMap(raw string) map[string]string {
	headers := make(map[string]string)
	for _, k := range types.MapKeys(raw) {
		headers[k] = types.MapValue(raw, k)
	}
	return headers
}
