// Package remote serves task and category repositories over HTTP and
// provides HTTP client implementations of the same repository interfaces.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/data/stores"
)

const maxBodySize = 1 << 20

type errorResponse struct {
	Message string `json:"message"`
}

type tasksResponse struct {
	Tasks []task.Task `json:"tasks"`
}

type categoriesResponse struct {
	Categories []task.Category `json:"categories"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// NewServer builds an echo instance with logging, recovery and the task
// routes registered.
func NewServer(tasks task.Repository, categories task.CategoryRepository, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(requestLogger(log))

	Register(e, tasks, categories, log)
	return e
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, tasks task.Repository, categories task.CategoryRepository, log zerolog.Logger) {
	e.GET("/api/tasks", listTasks(tasks, log))
	e.POST("/api/tasks", createTask(tasks, log))
	e.PUT("/api/tasks/order", reorderTasks(tasks, log))
	e.PATCH("/api/tasks/:id", updateTask(tasks, log))
	e.DELETE("/api/tasks/:id", deleteTask(tasks, log))

	e.GET("/api/categories", listCategories(categories, log))
	e.POST("/api/categories", createCategory(categories, log))
	e.PATCH("/api/categories/:id", updateCategory(categories, log))
	e.DELETE("/api/categories/:id", deleteCategory(categories, log))

	e.GET("/healthz", healthz(tasks))
}

func healthz(tasks task.Repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := tasks.List(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Message: err.Error()})
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(repo task.Repository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := repo.List(c.Request().Context())
		if err != nil {
			return fail(c, log, err)
		}
		if tasks == nil {
			tasks = []task.Task{}
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

func createTask(repo task.Repository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var draft task.Draft
		if err := decode(c, &draft); err != nil {
			return fail(c, log, err)
		}

		created, err := repo.Create(c.Request().Context(), draft)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func updateTask(repo task.Repository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch task.Patch
		if err := decode(c, &patch); err != nil {
			return fail(c, log, err)
		}

		updated, err := repo.Update(c.Request().Context(), c.Param("id"), patch)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(repo task.Repository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := repo.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return fail(c, log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func reorderTasks(repo task.Repository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req reorderRequest
		if err := decode(c, &req); err != nil {
			return fail(c, log, err)
		}

		ordered := make([]task.Task, len(req.IDs))
		for i, id := range req.IDs {
			ordered[i] = task.Task{ID: id, Order: i}
		}

		tasks, err := repo.Reorder(c.Request().Context(), ordered)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

func listCategories(repo task.CategoryRepository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		categories, err := repo.List(c.Request().Context())
		if err != nil {
			return fail(c, log, err)
		}
		if categories == nil {
			categories = []task.Category{}
		}
		return c.JSON(http.StatusOK, categoriesResponse{Categories: categories})
	}
}

func createCategory(repo task.CategoryRepository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req categoryRequest
		if err := decode(c, &req); err != nil {
			return fail(c, log, err)
		}

		created, err := repo.Create(c.Request().Context(), task.Category{Name: req.Name, Color: req.Color})
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func updateCategory(repo task.CategoryRepository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch task.CategoryPatch
		if err := decode(c, &patch); err != nil {
			return fail(c, log, err)
		}

		updated, err := repo.Update(c.Request().Context(), c.Param("id"), patch)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteCategory(repo task.CategoryRepository, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := repo.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return fail(c, log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

var errBadBody = errors.New("invalid body")

// decode reads a JSON request body into v. Unknown fields are rejected so a
// misspelled patch key is not silently ignored.
func decode(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadBody), errors.Is(err, task.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrDuplicateCategory):
		return http.StatusConflict
	case stores.IsBusyError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c echo.Context, log zerolog.Logger, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.JSON(status, errorResponse{Message: err.Error()})
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

var _ echo.JSONSerializer = sonicSerializer{}

const shutdownTimeout = 5 * time.Second

// Serve runs e on addr until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
