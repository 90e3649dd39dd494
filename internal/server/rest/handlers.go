package rest

import (
	"net/http"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, accounts Accounts, tasks Tasks, exporter Exporter) {
	e.GET("/healthz", healthz())

	authRequired := requireAuth(accounts)

	a := e.Group("/api/auth")
	a.POST("/register", register(accounts))
	a.POST("/login", login(accounts))
	a.GET("/me", me(accounts), authRequired)

	t := e.Group("/api/tasks", authRequired)
	t.GET("", listTasks(tasks))
	t.POST("", createTask(tasks))
	t.GET("/stats", taskStats(tasks))
	t.POST("/export", exportTasks(exporter))
	t.GET("/:id", getTask(tasks))
	t.PUT("/:id", updateTask(tasks))
	t.DELETE("/:id", deleteTask(tasks))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, envelope{Success: true})
	}
}

func register(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerRequest
		if err := decodeJSON(c, &req); err != nil {
			return err
		}

		res, err := accounts.Register(c.Request().Context(), req.Name, req.Email, req.Password)
		if err != nil {
			return err
		}

		return c.JSON(http.StatusCreated, envelope{Success: true, Token: res.Token, Data: res.User})
	}
}

func login(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeJSON(c, &req); err != nil {
			return err
		}

		res, err := accounts.Login(c.Request().Context(), req.Email, req.Password)
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, envelope{Success: true, Token: res.Token, Data: res.User})
	}
}

func me(accounts Accounts) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, err := accounts.Me(c.Request().Context(), currentUser(c))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ok(u))
	}
}

func listTasks(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		filter := models.TaskFilter{
			Status:   c.QueryParam("status"),
			Priority: c.QueryParam("priority"),
			Search:   c.QueryParam("search"),
			Sort:     c.QueryParam("sort"),
		}

		ctx, span := startSpan(c, "list", attribute.String("task.sort", filter.Normalize().Sort))
		defer func() { endSpan(span, err) }()

		list, err := tasks.List(ctx, currentUser(c), filter)
		if err != nil {
			return err
		}
		if list == nil {
			list = []models.Task{}
		}
		span.SetAttributes(attribute.Int("task.count", len(list)))

		count := len(list)
		return c.JSON(http.StatusOK, envelope{Success: true, Count: &count, Data: list})
	}
}

func getTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, span := startSpan(c, "get")
		defer func() { endSpan(span, err) }()

		task, err := tasks.Get(ctx, currentUser(c), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ok(task))
	}
}

func createTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, span := startSpan(c, "create")
		defer func() { endSpan(span, err) }()

		var req createTaskRequest
		if err = decodeJSON(c, &req); err != nil {
			return err
		}
		in, err := req.input()
		if err != nil {
			return err
		}

		task, err := tasks.Create(ctx, currentUser(c), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, ok(task))
	}
}

func updateTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, span := startSpan(c, "update")
		defer func() { endSpan(span, err) }()

		req, err := decodeUpdate(c)
		if err != nil {
			return err
		}
		patch, err := req.patch()
		if err != nil {
			return err
		}

		task, err := tasks.Update(ctx, currentUser(c), c.Param("id"), patch)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ok(task))
	}
}

func deleteTask(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, span := startSpan(c, "delete")
		defer func() { endSpan(span, err) }()

		if err = tasks.Delete(ctx, currentUser(c), c.Param("id")); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, envelope{Success: true, Message: "task deleted"})
	}
}

func taskStats(tasks Tasks) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, span := startSpan(c, "stats")
		defer func() { endSpan(span, err) }()

		stats, err := tasks.Stats(ctx, currentUser(c))
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("task.count", stats.Total))
		return c.JSON(http.StatusOK, ok(stats))
	}
}

func exportTasks(exporter Exporter) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, span := startSpan(c, "export")
		defer func() { endSpan(span, err) }()

		res, err := exporter.Export(ctx, currentUser(c))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, ok(res))
	}
}
